// Package sqlite registers the SQLite introspection dialect backed by the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/koustreak/schemacache/internal/database"
)

func init() {
	database.Register(Dialect{})
}

// Dialect implements database.Dialect for SQLite. The schema names an
// attached database; empty means "main".
type Dialect struct{}

const (
	describeQuery = `
		SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?, ?)
		ORDER BY cid`
)

var types = database.TypeMap{
	"integer":           database.TypeInteger,
	"int":               database.TypeInteger,
	"mediumint":         database.TypeInteger,
	"bigint":            database.TypeBigInteger,
	"smallint":          database.TypeSmallInteger,
	"tinyint":           database.TypeSmallInteger,
	"bool":              database.TypeBoolean,
	"boolean":           database.TypeBoolean,
	"char":              database.TypeString,
	"character":         database.TypeString,
	"varchar":           database.TypeString,
	"nvarchar":          database.TypeString,
	"varying character": database.TypeString,
	"character varying": database.TypeString,
	"text":              database.TypeText,
	"clob":              database.TypeText,
	"real":              database.TypeFloat,
	"double":            database.TypeFloat,
	"double precision":  database.TypeFloat,
	"float":             database.TypeFloat,
	"numeric":           database.TypeDecimal,
	"decimal":           database.TypeDecimal,
	"date":              database.TypeDate,
	"datetime":          database.TypeDateTime,
	"timestamp":         database.TypeDateTime,
	"time":              database.TypeTime,
	"blob":              database.TypeBinary,
	"uuid":              database.TypeUUID,
	"json":              database.TypeJSON,
}

func (Dialect) Driver() database.Driver { return database.DriverSQLite }
func (Dialect) SQLDriverName() string   { return "sqlite" }

func (Dialect) TableNames(ctx context.Context, db *sql.DB, schema string, includeViews bool) ([]string, error) {
	kinds := "'table'"
	if includeViews {
		kinds = "'table', 'view'"
	}
	q := "SELECT name FROM " + quoteIdent(schemaName(schema)) + ".sqlite_master" +
		" WHERE type IN (" + kinds + ") AND name NOT LIKE 'sqlite_%' ORDER BY name"
	return database.QueryStrings(ctx, db, q)
}

func (Dialect) CountTables(ctx context.Context, db *sql.DB, schema string) (int, error) {
	q := "SELECT COUNT(*) FROM " + quoteIdent(schemaName(schema)) + ".sqlite_master" +
		" WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"
	return database.QueryInt(ctx, db, q)
}

func (Dialect) DescribeTable(ctx context.Context, db *sql.DB, schema, table string) ([]database.ColumnRow, error) {
	s := schemaName(schema)
	if err := database.ProbeTable(ctx, db, quoteIdent(s)+"."+quoteIdent(table)); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, describeQuery, table, s)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []database.ColumnRow
	for rows.Next() {
		var (
			name, declared string
			notNull, pk    int
			def            sql.NullString
		)
		if err := rows.Scan(&name, &declared, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, database.ColumnRow{
			Name:          name,
			TypeCode:      declared,
			ColumnType:    declared,
			Nullable:      notNull == 0 && pk == 0,
			Default:       database.StringPtr(def),
			AutoIncrement: pk == 1 && strings.EqualFold(strings.TrimSpace(declared), "integer"),
		})
	}
	return cols, rows.Err()
}

// FieldType resolves declared column types. An INTEGER PRIMARY KEY column
// aliases the rowid and is reported as auto-increment.
func (Dialect) FieldType(code string, row database.ColumnRow) (string, error) {
	t, err := types.Lookup(code)
	if err != nil {
		return "", err
	}
	if row.AutoIncrement && t == database.TypeInteger {
		return database.TypeAutoInteger, nil
	}
	return t, nil
}

func (Dialect) MapError(err error, msg string) error {
	return mapError(err, msg)
}

func schemaName(schema string) string {
	if schema == "" {
		return "main"
	}
	return schema
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
