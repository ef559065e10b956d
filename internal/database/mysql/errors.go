package mysql

import (
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errUnknownDatabase    = 1049
	errTableAccessDenied  = 1142
	errColumnAccessDenied = 1143
	errNoSuchTable        = 1146
	errQueryInterrupted   = 1317
	errConnRefused        = 2003
	errServerGone         = 2006
)

// mapError converts a MySQL driver error into an *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errTableAccessDenied, errColumnAccessDenied:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case errNoSuchTable:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case errQueryInterrupted:
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		case errDBAccessDenied, errAccessDenied, errUnknownDatabase, errConnRefused, errServerGone:
			return errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
		default:
			return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
		}
	}

	if errors.Is(err, gomysql.ErrInvalidConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return database.MapCommonError(err, msg)
}
