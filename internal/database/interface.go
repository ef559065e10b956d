package database

import (
	"context"
	"database/sql"
)

// Introspector is the capability a live schema build needs from an open
// connection. Layers above this package talk only to this interface; they
// never import a dialect package directly.
type Introspector interface {
	// TableNames lists the tables in the connection's schema, and views too
	// when includeViews is set.
	TableNames(ctx context.Context, includeViews bool) ([]string, error)

	// DescribeTable returns the table's columns in ordinal order. Access
	// failures come back as errs.ErrKindPermissionDenied.
	DescribeTable(ctx context.Context, table string) ([]ColumnRow, error)

	// FieldType maps a native type code to a logical type name.
	FieldType(code string, row ColumnRow) (string, error)

	// CountTables returns how many base tables the schema holds.
	CountTables(ctx context.Context) (int, error)

	// Close releases the handle. Safe to call more than once.
	Close() error
}

// Opener acquires a scoped introspection handle.
type Opener interface {
	Open(ctx context.Context) (Introspector, error)
}

// Dialect supplies the engine-specific catalog queries behind a Handle.
// Implementations live in the driver subpackages and register themselves
// with Register from an init function.
type Dialect interface {
	// Driver is the canonical kind this dialect serves.
	Driver() Driver

	// SQLDriverName is the name the database/sql driver registered under.
	SQLDriverName() string

	TableNames(ctx context.Context, db *sql.DB, schema string, includeViews bool) ([]string, error)
	DescribeTable(ctx context.Context, db *sql.DB, schema, table string) ([]ColumnRow, error)
	CountTables(ctx context.Context, db *sql.DB, schema string) (int, error)
	FieldType(code string, row ColumnRow) (string, error)

	// MapError translates a native driver error into an *errs.Error.
	MapError(err error, msg string) error
}

// ColumnRow is one row of a table description as read from the catalog.
type ColumnRow struct {
	Name string

	// TypeCode is the engine's base type name (e.g. "integer", "nvarchar").
	TypeCode string

	// ColumnType is the full declared type when the engine exposes one
	// (e.g. "tinyint(1)", "_int4"). May equal TypeCode.
	ColumnType string

	Nullable      bool
	Default       *string
	MaxLength     *int64
	Precision     *int64
	Scale         *int64
	AutoIncrement bool
}
