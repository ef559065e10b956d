// Package sqlserver registers the Microsoft SQL Server introspection dialect.
package sqlserver

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // register "sqlserver" driver

	"github.com/koustreak/schemacache/internal/database"
)

func init() {
	database.Register(Dialect{})
}

// Dialect implements database.Dialect for SQL Server. An empty schema
// means the login's default schema.
type Dialect struct{}

const (
	listTablesQuery = `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(@schema, ''), SCHEMA_NAME())
		  AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	listTablesAndViewsQuery = `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(@schema, ''), SCHEMA_NAME())
		  AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		ORDER BY TABLE_NAME`

	countTablesQuery = `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(@schema, ''), SCHEMA_NAME())
		  AND TABLE_TYPE = 'BASE TABLE'`

	describeQuery = `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
		       c.CHARACTER_MAXIMUM_LENGTH, c.NUMERIC_PRECISION, c.NUMERIC_SCALE,
		       COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity')
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = COALESCE(NULLIF(@schema, ''), SCHEMA_NAME())
		  AND c.TABLE_NAME = @table
		ORDER BY c.ORDINAL_POSITION`
)

var types = database.TypeMap{
	"tinyint":          database.TypeSmallInteger,
	"smallint":         database.TypeSmallInteger,
	"int":              database.TypeInteger,
	"bigint":           database.TypeBigInteger,
	"bit":              database.TypeBoolean,
	"char":             database.TypeString,
	"varchar":          database.TypeString,
	"nchar":            database.TypeString,
	"nvarchar":         database.TypeString,
	"text":             database.TypeText,
	"ntext":            database.TypeText,
	"xml":              database.TypeText,
	"decimal":          database.TypeDecimal,
	"numeric":          database.TypeDecimal,
	"money":            database.TypeDecimal,
	"smallmoney":       database.TypeDecimal,
	"float":            database.TypeFloat,
	"real":             database.TypeFloat,
	"date":             database.TypeDate,
	"datetime":         database.TypeDateTime,
	"datetime2":        database.TypeDateTime,
	"smalldatetime":    database.TypeDateTime,
	"datetimeoffset":   database.TypeDateTime,
	"time":             database.TypeTime,
	"binary":           database.TypeBinary,
	"varbinary":        database.TypeBinary,
	"image":            database.TypeBinary,
	"uniqueidentifier": database.TypeUUID,
}

func (Dialect) Driver() database.Driver { return database.DriverSQLServer }
func (Dialect) SQLDriverName() string   { return "sqlserver" }

func (Dialect) TableNames(ctx context.Context, db *sql.DB, schema string, includeViews bool) ([]string, error) {
	q := listTablesQuery
	if includeViews {
		q = listTablesAndViewsQuery
	}
	return database.QueryStrings(ctx, db, q, sql.Named("schema", schema))
}

func (Dialect) CountTables(ctx context.Context, db *sql.DB, schema string) (int, error) {
	return database.QueryInt(ctx, db, countTablesQuery, sql.Named("schema", schema))
}

func (Dialect) DescribeTable(ctx context.Context, db *sql.DB, schema, table string) ([]database.ColumnRow, error) {
	if err := database.ProbeTable(ctx, db, qualify(schema, table)); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, describeQuery, sql.Named("schema", schema), sql.Named("table", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []database.ColumnRow
	for rows.Next() {
		var (
			name, dataType, nullable string
			def                      sql.NullString
			maxLen, precision, scale sql.NullInt64
			identity                 sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &nullable, &def, &maxLen, &precision, &scale, &identity); err != nil {
			return nil, err
		}
		cols = append(cols, database.ColumnRow{
			Name:          name,
			TypeCode:      dataType,
			ColumnType:    dataType,
			Nullable:      nullable == "YES",
			Default:       database.StringPtr(def),
			MaxLength:     database.Int64Ptr(maxLen),
			Precision:     database.Int64Ptr(precision),
			Scale:         database.Int64Ptr(scale),
			AutoIncrement: identity.Valid && identity.Int64 == 1,
		})
	}
	return cols, rows.Err()
}

// FieldType resolves INFORMATION_SCHEMA data types. nvarchar(max) reports a
// maximum length of -1 and is treated as text.
func (Dialect) FieldType(code string, row database.ColumnRow) (string, error) {
	t, err := types.Lookup(code)
	if err != nil {
		return "", err
	}
	if t == database.TypeString && row.MaxLength != nil && *row.MaxLength == -1 {
		return database.TypeText, nil
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
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func qualify(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}
