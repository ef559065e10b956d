// Package database opens short-lived introspection handles against the
// databases users register as connections.
//
// Each engine lives in its own subpackage (postgres, mysql, sqlserver,
// sqlite) which registers a Dialect on import:
//
//	import _ "github.com/koustreak/schemacache/internal/database/sqlserver"
//
//	h, err := conn.Open(ctx)
//	if err != nil { ... }
//	defer h.Close()
//	tables, err := h.TableNames(ctx, false)
package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/koustreak/schemacache/internal/errs"
)

// Handle is a Dialect bound to an open *sql.DB. It implements Introspector.
// It is safe for concurrent use by multiple goroutines.
type Handle struct {
	db           *sql.DB
	dialect      Dialect
	schema       string
	queryTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// NewHandle binds dialect to an already opened db.
func NewHandle(db *sql.DB, dialect Dialect, schema string, queryTimeout time.Duration) *Handle {
	return &Handle{db: db, dialect: dialect, schema: schema, queryTimeout: queryTimeout}
}

// OpenHandle opens a database/sql pool for cfg, verifies it with a ping and
// wraps it in a Handle.
func OpenHandle(ctx context.Context, cfg *Config) (*Handle, error) {
	dialect, err := Lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.SQLDriverName(), cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		mapped := dialect.MapError(err, "ping failed")
		if errs.KindOf(mapped) == errs.ErrKindQueryFailed {
			return nil, errs.Wrap(errs.ErrKindConnectionFailed, "ping failed", err)
		}
		return nil, mapped
	}

	return NewHandle(db, dialect, cfg.Schema, cfg.QueryTimeout), nil
}

// --- Introspector implementation ---

func (h *Handle) TableNames(ctx context.Context, includeViews bool) ([]string, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	names, err := h.dialect.TableNames(ctx, h.db, h.schema, includeViews)
	if err != nil {
		return nil, h.dialect.MapError(err, "failed to list tables")
	}
	return names, nil
}

func (h *Handle) DescribeTable(ctx context.Context, table string) ([]ColumnRow, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	rows, err := h.dialect.DescribeTable(ctx, h.db, h.schema, table)
	if err != nil {
		return nil, h.dialect.MapError(err, "failed to describe table "+table)
	}
	return rows, nil
}

func (h *Handle) FieldType(code string, row ColumnRow) (string, error) {
	return h.dialect.FieldType(code, row)
}

func (h *Handle) CountTables(ctx context.Context) (int, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	n, err := h.dialect.CountTables(ctx, h.db, h.schema)
	if err != nil {
		return 0, h.dialect.MapError(err, "failed to count tables")
	}
	return n, nil
}

// Close closes the underlying pool once; later calls return the first result.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.db.Close()
	})
	return h.closeErr
}

func (h *Handle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.queryTimeout)
}
