package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
)

func newHandle(t *testing.T) (*database.Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return database.NewHandle(db, Dialect{}, "", time.Second), mock
}

func TestDescribeTable(t *testing.T) {
	h, mock := newHandle(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE 1=0")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("", "users").
		WillReturnRows(sqlmock.NewRows([]string{
			"column_name", "data_type", "column_type", "is_nullable", "column_default",
			"character_maximum_length", "numeric_precision", "numeric_scale", "extra",
		}).
			AddRow("id", "bigint", "bigint unsigned", "NO", nil, nil, 20, 0, "auto_increment").
			AddRow("active", "tinyint", "tinyint(1)", "NO", "1", nil, 3, 0, "").
			AddRow("email", "varchar", "varchar(255)", "YES", nil, 255, nil, nil, ""))

	cols, err := h.DescribeTable(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	got := make([]string, 0, len(cols))
	for _, c := range cols {
		typ, err := h.FieldType(c.TypeCode, c)
		require.NoError(t, err)
		got = append(got, typ)
	}
	assert.Equal(t, []string{database.TypeBigAutoInteger, database.TypeBoolean, database.TypeString}, got)
	require.NotNil(t, cols[2].MaxLength)
	assert.Equal(t, int64(255), *cols[2].MaxLength)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable_TableAccessDenied(t *testing.T) {
	h, mock := newHandle(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `salaries` WHERE 1=0")).
		WillReturnError(&gomysql.MySQLError{Number: 1142, Message: "SELECT command denied"})

	_, err := h.DescribeTable(context.Background(), "salaries")
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestTableNames_WithViews(t *testing.T) {
	h, mock := newHandle(t)

	mock.ExpectQuery(regexp.QuoteMeta("table_type IN ('BASE TABLE', 'VIEW')")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("active_users").AddRow("users"))

	names, err := h.TableNames(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"active_users", "users"}, names)
}

func TestFieldType_Unknown(t *testing.T) {
	_, err := Dialect{}.FieldType("geometry", database.ColumnRow{ColumnType: "geometry"})
	assert.True(t, errs.IsUnsupported(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"table access denied", &gomysql.MySQLError{Number: 1142}, errs.ErrKindPermissionDenied},
		{"column access denied", &gomysql.MySQLError{Number: 1143}, errs.ErrKindPermissionDenied},
		{"login denied", &gomysql.MySQLError{Number: 1045}, errs.ErrKindConnectionFailed},
		{"no such table", &gomysql.MySQLError{Number: 1146}, errs.ErrKindNotFound},
		{"interrupted", &gomysql.MySQLError{Number: 1317}, errs.ErrKindTimeout},
		{"other", &gomysql.MySQLError{Number: 1064}, errs.ErrKindQueryFailed},
		{"invalid conn", gomysql.ErrInvalidConn, errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(mapError(tt.err, "op")))
		})
	}
}
