package sqlserver

import (
	"errors"
	"fmt"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
)

// SQL Server error numbers
// Full list: https://learn.microsoft.com/sql/relational-databases/errors-events/database-engine-events-and-errors
const (
	errObjectPermission = 229
	errColumnPermission = 230
	errInvalidObject    = 208
	errLoginFailed      = 18456
	errCannotOpenDB     = 4060
)

// mapError converts a go-mssqldb error into an *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case errObjectPermission, errColumnPermission:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case errInvalidObject:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case errLoginFailed, errCannotOpenDB:
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		default:
			return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %s", msg, msErr.Message), err)
		}
	}

	return database.MapCommonError(err, msg)
}
