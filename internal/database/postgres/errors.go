package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
)

// PostgreSQL SQLSTATE error codes relevant to catalog reads.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrInsufficientPrivilege = "42501"
	pgErrUndefinedTable        = "42P01"
	pgErrInvalidAuthorization  = "28000"
	pgErrInvalidPassword       = "28P01"
	pgErrQueryCanceled         = "57014"
	pgErrAdminShutdown         = "57P01"
	pgClassConnection          = "08"
)

// mapError converts a pgx error into an *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgErrInsufficientPrivilege:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case pgErr.Code == pgErrUndefinedTable:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case pgErr.Code == pgErrQueryCanceled:
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		case pgErr.Code == pgErrInvalidAuthorization,
			pgErr.Code == pgErrInvalidPassword,
			pgErr.Code == pgErrAdminShutdown,
			strings.HasPrefix(pgErr.Code, pgClassConnection):
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		default:
			return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
		}
	}

	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	return database.MapCommonError(err, msg)
}
