// Package cache defines the key/value store the schema cache writes
// snapshots into, plus in-memory and SQLite implementations.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a byte-oriented cache with per-entry expiry.
//
// A ttl of zero on Set means the store's default TTL; a negative ttl means
// the entry never expires. Deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Maintained is implemented by stores that can reclaim expired entries
// nobody reads again and report their usage.
type Maintained interface {
	// Purge drops expired entries and reports how many went.
	Purge(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}

var (
	_ Maintained = (*Memory)(nil)
	_ Maintained = (*SQLite)(nil)
)

// Stats counts live entries and lookups since the store was opened.
type Stats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is a process-local Store.
// It is safe for concurrent use by multiple goroutines.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	now        func() time.Time
	hits       int64
	misses     int64
}

// NewMemory returns an empty store whose Set(…, 0) uses defaultTTL.
// A non-positive defaultTTL keeps such entries forever.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if ok && !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		m.misses++
		return nil, false, nil
	}
	m.hits++
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: expiry(m.now(), ttl, m.defaultTTL),
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Purge(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Stats counts entries not yet purged, expired or not.
func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Entries: int64(len(m.entries)), Hits: m.hits, Misses: m.misses}, nil
}

// expiry resolves the absolute expiry for an entry written at now.
func expiry(now time.Time, ttl, defaultTTL time.Duration) time.Time {
	if ttl == 0 {
		ttl = defaultTTL
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
