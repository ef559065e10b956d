package sqlite

import (
	"errors"
	"strings"

	sqlitedrv "modernc.org/sqlite"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
)

// SQLite primary result codes (extended codes keep these in the low byte).
const (
	sqliteError    = 1
	sqlitePerm     = 3
	sqliteBusy     = 5
	sqliteReadOnly = 8
	sqliteCantOpen = 14
	sqliteAuth     = 23
)

// mapError converts a modernc sqlite error into an *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var sqErr *sqlitedrv.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqliteAuth, sqlitePerm, sqliteReadOnly:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case sqliteCantOpen:
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		case sqliteBusy:
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		case sqliteError:
			if strings.Contains(sqErr.Error(), "no such table") {
				return errs.Wrap(errs.ErrKindNotFound, msg, err)
			}
			return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
		}
	}

	return database.MapCommonError(err, msg)
}
