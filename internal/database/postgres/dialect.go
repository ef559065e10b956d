// Package postgres registers the PostgreSQL introspection dialect.
//
// It talks to the server through pgx's database/sql adapter and reads
// table and column metadata from information_schema.
package postgres

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" driver

	"github.com/koustreak/schemacache/internal/database"
)

func init() {
	database.Register(Dialect{})
}

// Dialect implements database.Dialect for PostgreSQL.
type Dialect struct{}

const (
	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	listTablesAndViewsQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	countTablesQuery = `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND table_type = 'BASE TABLE'`

	describeQuery = `
		SELECT column_name, data_type, udt_name, is_nullable, column_default,
		       character_maximum_length, numeric_precision, numeric_scale, is_identity
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND table_name = $2
		ORDER BY ordinal_position`
)

var types = database.TypeMap{
	"smallint":                    database.TypeSmallInteger,
	"integer":                     database.TypeInteger,
	"bigint":                      database.TypeBigInteger,
	"boolean":                     database.TypeBoolean,
	"character varying":           database.TypeString,
	"character":                   database.TypeString,
	"text":                        database.TypeText,
	"numeric":                     database.TypeDecimal,
	"real":                        database.TypeFloat,
	"double precision":            database.TypeFloat,
	"date":                        database.TypeDate,
	"timestamp without time zone": database.TypeDateTime,
	"timestamp with time zone":    database.TypeDateTime,
	"time without time zone":      database.TypeTime,
	"time with time zone":         database.TypeTime,
	"interval":                    database.TypeDuration,
	"bytea":                       database.TypeBinary,
	"uuid":                        database.TypeUUID,
	"json":                        database.TypeJSON,
	"jsonb":                       database.TypeJSON,
	"inet":                        database.TypeIPAddress,
	"cidr":                        database.TypeIPAddress,
}

func (Dialect) Driver() database.Driver { return database.DriverPostgres }
func (Dialect) SQLDriverName() string   { return "pgx" }

func (Dialect) TableNames(ctx context.Context, db *sql.DB, schema string, includeViews bool) ([]string, error) {
	q := listTablesQuery
	if includeViews {
		q = listTablesAndViewsQuery
	}
	return database.QueryStrings(ctx, db, q, schema)
}

func (Dialect) CountTables(ctx context.Context, db *sql.DB, schema string) (int, error) {
	return database.QueryInt(ctx, db, countTablesQuery, schema)
}

func (Dialect) DescribeTable(ctx context.Context, db *sql.DB, schema, table string) ([]database.ColumnRow, error) {
	if err := database.ProbeTable(ctx, db, qualify(schema, table)); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, describeQuery, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []database.ColumnRow
	for rows.Next() {
		var (
			name, dataType, udt, nullable string
			def, identity                 sql.NullString
			maxLen, precision, scale      sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &udt, &nullable, &def, &maxLen, &precision, &scale, &identity); err != nil {
			return nil, err
		}

		col := database.ColumnRow{
			Name:       name,
			TypeCode:   dataType,
			ColumnType: udt,
			Nullable:   nullable == "YES",
			Default:    database.StringPtr(def),
			MaxLength:  database.Int64Ptr(maxLen),
			Precision:  database.Int64Ptr(precision),
			Scale:      database.Int64Ptr(scale),
		}
		col.AutoIncrement = identity.String == "YES" ||
			(def.Valid && strings.HasPrefix(def.String, "nextval("))
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// FieldType resolves information_schema data_type codes. Serial and
// identity integer columns become the auto-increment variants.
func (Dialect) FieldType(code string, row database.ColumnRow) (string, error) {
	t, err := types.Lookup(code)
	if err != nil {
		return "", err
	}
	if row.AutoIncrement {
		switch t {
		case database.TypeInteger:
			return database.TypeAutoInteger, nil
		case database.TypeBigInteger:
			return database.TypeBigAutoInteger, nil
		}
	}
	return t, nil
}

func (Dialect) MapError(err error, msg string) error {
	return mapError(err, msg)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualify(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}
