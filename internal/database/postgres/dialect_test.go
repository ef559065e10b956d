package postgres

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
)

var describeColumns = []string{
	"column_name", "data_type", "udt_name", "is_nullable", "column_default",
	"character_maximum_length", "numeric_precision", "numeric_scale", "is_identity",
}

func newHandle(t *testing.T, schema string) (*database.Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return database.NewHandle(db, Dialect{}, schema, time.Second), mock
}

func TestDialect_Registered(t *testing.T) {
	d, err := database.Lookup(database.DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.SQLDriverName())
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		name         string
		includeViews bool
		wantQuery    string
	}{
		{"tables only", false, `table_type = 'BASE TABLE'`},
		{"tables and views", true, `table_type IN ('BASE TABLE', 'VIEW')`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := newHandle(t, "public")
			mock.ExpectQuery(regexp.QuoteMeta(tt.wantQuery)).
				WithArgs("public").
				WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("customers").AddRow("orders"))

			names, err := h.TableNames(context.Background(), tt.includeViews)
			require.NoError(t, err)
			assert.Equal(t, []string{"customers", "orders"}, names)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDescribeTable(t *testing.T) {
	h, mock := newHandle(t, "public")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."orders" WHERE 1=0`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "total"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows(describeColumns).
			AddRow("id", "integer", "int4", "NO", "nextval('orders_id_seq'::regclass)", nil, 32, 0, "NO").
			AddRow("total", "numeric", "numeric", "YES", nil, nil, 12, 2, "NO").
			AddRow("tags", "ARRAY", "_text", "YES", nil, nil, nil, nil, "NO"))

	cols, err := h.DescribeTable(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].AutoIncrement)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].Nullable)
	require.NotNil(t, cols[1].Scale)
	assert.Equal(t, int64(2), *cols[1].Scale)
	assert.Equal(t, "_text", cols[2].ColumnType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable_PermissionDenied(t *testing.T) {
	h, mock := newHandle(t, "")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payroll" WHERE 1=0`)).
		WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied for table payroll"})

	_, err := h.DescribeTable(context.Background(), "payroll")
	require.Error(t, err)
	assert.True(t, errs.IsPermissionDenied(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountTables(t *testing.T) {
	h, mock := newHandle(t, "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1200))

	n, err := h.CountTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
}

func TestFieldType(t *testing.T) {
	tests := []struct {
		code    string
		row     database.ColumnRow
		want    string
		wantErr bool
	}{
		{code: "integer", want: database.TypeInteger},
		{code: "integer", row: database.ColumnRow{AutoIncrement: true}, want: database.TypeAutoInteger},
		{code: "bigint", row: database.ColumnRow{AutoIncrement: true}, want: database.TypeBigAutoInteger},
		{code: "character varying", want: database.TypeString},
		{code: "timestamp with time zone", want: database.TypeDateTime},
		{code: "jsonb", want: database.TypeJSON},
		{code: "uuid", want: database.TypeUUID},
		{code: "USER-DEFINED", wantErr: true},
		{code: "ARRAY", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := Dialect{}.FieldType(tt.code, tt.row)
			if tt.wantErr {
				assert.True(t, errs.IsUnsupported(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"insufficient privilege", &pgconn.PgError{Code: "42501"}, errs.ErrKindPermissionDenied},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, errs.ErrKindNotFound},
		{"bad password", &pgconn.PgError{Code: "28P01"}, errs.ErrKindConnectionFailed},
		{"connection class", &pgconn.PgError{Code: "08006"}, errs.ErrKindConnectionFailed},
		{"canceled", &pgconn.PgError{Code: "57014"}, errs.ErrKindTimeout},
		{"syntax", &pgconn.PgError{Code: "42601", Message: "syntax error"}, errs.ErrKindQueryFailed},
		{"bad conn", driver.ErrBadConn, errs.ErrKindConnectionFailed},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(mapError(tt.err, "op")))
		})
	}

	assert.NoError(t, mapError(nil, "op"))
}
