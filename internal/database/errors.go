package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/koustreak/schemacache/internal/errs"
)

// MapCommonError handles the failures every database/sql driver shares.
// Dialects call it after checking their own native error codes.
func MapCommonError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	case errors.Is(err, sql.ErrNoRows):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn):
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
