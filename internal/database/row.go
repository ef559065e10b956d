package database

import (
	"context"
	"database/sql"
)

// QueryStrings runs query and collects the first column of every row.
func QueryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// QueryInt runs a single-value query such as SELECT COUNT(*).
func QueryInt(ctx context.Context, db *sql.DB, query string, args ...any) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ProbeTable issues a zero-row SELECT against the already quoted table so
// that access control failures surface the same way a real read would.
func ProbeTable(ctx context.Context, db *sql.DB, quotedTable string) error {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quotedTable+" WHERE 1=0")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// Int64Ptr converts a nullable catalog integer.
func Int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// StringPtr converts a nullable catalog string.
func StringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
