// Package mysql registers the MySQL / MariaDB introspection dialect.
package mysql

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver

	"github.com/koustreak/schemacache/internal/database"
)

func init() {
	database.Register(Dialect{})
}

// Dialect implements database.Dialect for MySQL. An empty schema means the
// database named in the DSN.
type Dialect struct{}

const (
	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	listTablesAndViewsQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	countTablesQuery = `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_type = 'BASE TABLE'`

	describeQuery = `
		SELECT column_name, data_type, column_type, is_nullable, column_default,
		       character_maximum_length, numeric_precision, numeric_scale, extra
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name = ?
		ORDER BY ordinal_position`
)

var types = database.TypeMap{
	"tinyint":    database.TypeSmallInteger,
	"smallint":   database.TypeSmallInteger,
	"mediumint":  database.TypeInteger,
	"int":        database.TypeInteger,
	"integer":    database.TypeInteger,
	"bigint":     database.TypeBigInteger,
	"bit":        database.TypeBoolean,
	"bool":       database.TypeBoolean,
	"boolean":    database.TypeBoolean,
	"char":       database.TypeString,
	"varchar":    database.TypeString,
	"enum":       database.TypeString,
	"set":        database.TypeString,
	"tinytext":   database.TypeText,
	"text":       database.TypeText,
	"mediumtext": database.TypeText,
	"longtext":   database.TypeText,
	"decimal":    database.TypeDecimal,
	"numeric":    database.TypeDecimal,
	"float":      database.TypeFloat,
	"double":     database.TypeFloat,
	"real":       database.TypeFloat,
	"date":       database.TypeDate,
	"datetime":   database.TypeDateTime,
	"timestamp":  database.TypeDateTime,
	"time":       database.TypeTime,
	"year":       database.TypeSmallInteger,
	"binary":     database.TypeBinary,
	"varbinary":  database.TypeBinary,
	"tinyblob":   database.TypeBinary,
	"blob":       database.TypeBinary,
	"mediumblob": database.TypeBinary,
	"longblob":   database.TypeBinary,
	"json":       database.TypeJSON,
}

func (Dialect) Driver() database.Driver { return database.DriverMySQL }
func (Dialect) SQLDriverName() string   { return "mysql" }

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
			name, dataType, columnType, nullable string
			def, extra                           sql.NullString
			maxLen, precision, scale             sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &columnType, &nullable, &def, &maxLen, &precision, &scale, &extra); err != nil {
			return nil, err
		}
		cols = append(cols, database.ColumnRow{
			Name:          name,
			TypeCode:      dataType,
			ColumnType:    columnType,
			Nullable:      nullable == "YES",
			Default:       database.StringPtr(def),
			MaxLength:     database.Int64Ptr(maxLen),
			Precision:     database.Int64Ptr(precision),
			Scale:         database.Int64Ptr(scale),
			AutoIncrement: strings.Contains(strings.ToLower(extra.String), "auto_increment"),
		})
	}
	return cols, rows.Err()
}

// FieldType resolves data_type codes. tinyint(1) is how MySQL spells a
// boolean column.
func (Dialect) FieldType(code string, row database.ColumnRow) (string, error) {
	t, err := types.Lookup(code)
	if err != nil {
		return "", err
	}
	if database.BaseTypeName(code) == "tinyint" && strings.HasPrefix(strings.ToLower(row.ColumnType), "tinyint(1)") {
		return database.TypeBoolean, nil
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
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func qualify(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}
