package cache

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/koustreak/schemacache/internal/errs"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries (expires_at);
`

// SQLite is a Store persisted in a SQLite database file, so cached schemas
// survive restarts and can be shared by processes on one host.
type SQLite struct {
	db         *sql.DB
	defaultTTL time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

// OpenSQLite opens (creating if needed) the cache database at path.
// Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string, defaultTTL time.Duration) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "open sqlite cache", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "ping sqlite cache", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "initialize sqlite cache schema", err)
	}

	return &SQLite{db: db, defaultTTL: defaultTTL, now: time.Now}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrapf(errs.ErrKindQueryFailed, err, "get cache key %q", key)
	}

	if expiresAt.Valid && s.now().UnixNano() >= expiresAt.Int64 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key = ? AND expires_at = ?`, key, expiresAt.Int64,
		); err != nil {
			return nil, false, errs.Wrapf(errs.ErrKindQueryFailed, err, "expire cache key %q", key)
		}
		s.misses.Add(1)
		return nil, false, nil
	}
	s.hits.Add(1)
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if at := expiry(s.now(), ttl, s.defaultTTL); !at.IsZero() {
		expiresAt = sql.NullInt64{Int64: at.UnixNano(), Valid: true}
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return errs.Wrapf(errs.ErrKindQueryFailed, err, "set cache key %q", key)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return errs.Wrapf(errs.ErrKindQueryFailed, err, "delete cache key %q", key)
	}
	return nil
}

// Purge removes every expired entry and reports how many were dropped.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindQueryFailed, "purge expired cache entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindQueryFailed, "count purged cache entries", err)
	}
	return n, nil
}

// Stats counts unexpired rows; hits and misses are per process.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE expires_at IS NULL OR expires_at > ?`, s.now().UnixNano(),
	).Scan(&n)
	if err != nil {
		return Stats{}, errs.Wrap(errs.ErrKindQueryFailed, "count cache entries", err)
	}
	return Stats{Entries: n, Hits: s.hits.Load(), Misses: s.misses.Load()}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
