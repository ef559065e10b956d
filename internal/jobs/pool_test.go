package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemacache/internal/cache"
	"github.com/koustreak/schemacache/internal/database"
	_ "github.com/koustreak/schemacache/internal/database/sqlite"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/schema"
	"github.com/koustreak/schemacache/internal/schemacache"
)

type fakeBuilder struct {
	mu      sync.Mutex
	results map[string]schema.Result
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (b *fakeBuilder) Build(ctx context.Context, conn *database.Connection) (schema.Result, error) {
	b.calls.Add(1)
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return schema.Result{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return schema.Result{Mode: schema.ModeLive}, b.err
	}
	return b.results[conn.ID], nil
}

var crmSchema = schema.Info{{Name: "leads", Columns: []schema.Column{{Name: "id", Type: "Integer"}}}}

func catalog(t *testing.T, ids ...string) *database.Catalog {
	t.Helper()
	c, err := database.NewCatalog()
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, c.Add(&database.Connection{ID: id, Config: database.DefaultConfig(database.DriverSQLite, id+".db")}))
	}
	return c
}

func cached(t *testing.T, s cache.Store, key string) bool {
	t.Helper()
	_, ok, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestPool_DispatchSetsMarkerOnce(t *testing.T) {
	store := cache.NewMemory(0)
	p := NewPool(store, catalog(t, "crm"), &fakeBuilder{}, Config{QueueSize: 4}, nil)
	ctx := context.Background()

	got := p.Dispatch(ctx, "crm")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.True(t, cached(t, store, schemacache.BuildMarkerKey("crm")))
	assert.Equal(t, 1, p.Pending())

	p.Dispatch(ctx, "crm")
	assert.Equal(t, 1, p.Pending(), "second dispatch sees the marker")
}

func TestPool_DispatchDropsWhenQueueFull(t *testing.T) {
	store := cache.NewMemory(0)
	p := NewPool(store, catalog(t, "a", "b"), &fakeBuilder{}, Config{QueueSize: 1}, nil)
	ctx := context.Background()

	p.Dispatch(ctx, "a")
	p.Dispatch(ctx, "b")

	assert.Equal(t, 1, p.Pending())
	assert.True(t, cached(t, store, schemacache.BuildMarkerKey("a")))
	assert.False(t, cached(t, store, schemacache.BuildMarkerKey("b")), "dropped job must not leave a marker")
}

func TestPool_RunPublishesBuild(t *testing.T) {
	store := cache.NewMemory(0)
	b := &fakeBuilder{results: map[string]schema.Result{
		"crm": {Schema: crmSchema, Mode: schema.ModeLive, Cacheable: true},
	}}
	p := NewPool(store, catalog(t, "crm"), b, Config{Workers: 2}, nil)
	m := schemacache.NewManager(store, p, schemacache.Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	conn, err := catalog(t, "crm").Lookup("crm")
	require.NoError(t, err)

	assert.Empty(t, m.GetSchema(ctx, conn))
	require.Eventually(t, func() bool {
		_, ok := m.Peek(ctx, conn)
		return ok && !cached(t, store, schemacache.BuildMarkerKey("crm"))
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, crmSchema, m.GetSchema(ctx, conn))
	assert.Equal(t, int32(1), b.calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestPool_RunTwice(t *testing.T) {
	p := NewPool(cache.NewMemory(0), catalog(t), &fakeBuilder{}, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, p.running.Load, time.Second, 5*time.Millisecond)
	assert.True(t, errs.IsInvalidInput(p.Run(ctx)))

	cancel()
	require.NoError(t, <-done)
}

func TestPool_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("cacheable result is published", func(t *testing.T) {
		store := cache.NewMemory(0)
		require.NoError(t, store.Set(ctx, schemacache.JSONSchemaKey("crm"), []byte(`{"stale":[]}`), 0))
		require.NoError(t, store.Set(ctx, schemacache.BuildMarkerKey("crm"), []byte("job"), 0))

		b := &fakeBuilder{results: map[string]schema.Result{"crm": {Schema: crmSchema, Cacheable: true}}}
		res, err := NewPool(store, catalog(t, "crm"), b, Config{}, nil).Build(ctx, "crm")
		require.NoError(t, err)
		assert.Equal(t, crmSchema, res.Schema)

		assert.True(t, cached(t, store, schemacache.SchemaKey("crm")))
		assert.False(t, cached(t, store, schemacache.JSONSchemaKey("crm")))
		assert.False(t, cached(t, store, schemacache.BuildMarkerKey("crm")))
	})

	t.Run("uncacheable result is not published", func(t *testing.T) {
		store := cache.NewMemory(0)
		b := &fakeBuilder{results: map[string]schema.Result{
			"crm": {Schema: schema.Info{}, Mode: schema.ModeFallback, Fallback: schema.FallbackNoSource},
		}}
		res, err := NewPool(store, catalog(t, "crm"), b, Config{}, nil).Build(ctx, "crm")
		require.NoError(t, err)
		assert.Equal(t, schema.FallbackNoSource, res.Fallback)
		assert.False(t, cached(t, store, schemacache.SchemaKey("crm")))
	})

	t.Run("build error clears marker", func(t *testing.T) {
		store := cache.NewMemory(0)
		require.NoError(t, store.Set(ctx, schemacache.BuildMarkerKey("crm"), []byte("job"), 0))

		b := &fakeBuilder{err: errs.Wrap(errs.ErrKindConnectionFailed, "open", errors.New("refused"))}
		_, err := NewPool(store, catalog(t, "crm"), b, Config{}, nil).Build(ctx, "crm")
		assert.True(t, errs.IsConnectionFailed(err))
		assert.False(t, cached(t, store, schemacache.SchemaKey("crm")))
		assert.False(t, cached(t, store, schemacache.BuildMarkerKey("crm")))
	})

	t.Run("unknown connection", func(t *testing.T) {
		_, err := NewPool(cache.NewMemory(0), catalog(t), &fakeBuilder{}, Config{}, nil).Build(ctx, "ghost")
		assert.True(t, errs.IsNotFound(err))
	})
}

func TestPool_BuildSharesConcurrentCalls(t *testing.T) {
	store := cache.NewMemory(0)
	b := &fakeBuilder{
		results: map[string]schema.Result{"crm": {Schema: crmSchema, Cacheable: true}},
		release: make(chan struct{}),
	}
	p := NewPool(store, catalog(t, "crm"), b, Config{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]schema.Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = p.Build(ctx, "crm")
	}()
	require.Eventually(t, func() bool { return b.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = p.Build(ctx, "crm")
	}()
	time.Sleep(50 * time.Millisecond)
	close(b.release)
	wg.Wait()

	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, crmSchema, results[0].Schema)
	assert.Equal(t, crmSchema, results[1].Schema)
}

func TestPool_RunClearsQueuedMarkersOnStop(t *testing.T) {
	store := cache.NewMemory(0)
	b := &fakeBuilder{release: make(chan struct{})}
	p := NewPool(store, catalog(t, "a", "b", "c"), b, Config{Workers: 1, QueueSize: 4}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	for _, id := range []string{"a", "b", "c"} {
		p.Dispatch(ctx, id)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return b.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 0, p.Pending())
	for _, id := range []string{"a", "b", "c"} {
		assert.False(t, cached(t, store, schemacache.BuildMarkerKey(id)), id)
	}
}

// gatedBuilder returns results[n] for its n-th call once gates[n] closes.
type gatedBuilder struct {
	calls   atomic.Int32
	gates   []chan struct{}
	results []schema.Info
}

func newGatedBuilder(results ...schema.Info) *gatedBuilder {
	b := &gatedBuilder{results: results}
	for range results {
		b.gates = append(b.gates, make(chan struct{}))
	}
	return b
}

func (b *gatedBuilder) Build(ctx context.Context, _ *database.Connection) (schema.Result, error) {
	n := b.calls.Add(1) - 1
	select {
	case <-b.gates[n]:
	case <-ctx.Done():
		return schema.Result{}, ctx.Err()
	}
	return schema.Result{Schema: b.results[n], Mode: schema.ModeLive, Cacheable: true}, nil
}

func TestPool_InvalidateDuringBuildStartsFreshBuild(t *testing.T) {
	oldSchema := schema.Info{{Name: "old_table"}}
	newSchema := schema.Info{{Name: "new_table"}}

	store := cache.NewMemory(0)
	b := newGatedBuilder(oldSchema, newSchema)
	p := NewPool(store, catalog(t, "crm"), b, Config{Workers: 2}, nil)
	m := schemacache.NewManager(store, p, schemacache.Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	conn, err := catalog(t, "crm").Lookup("crm")
	require.NoError(t, err)

	assert.Empty(t, m.GetSchema(ctx, conn))
	require.Eventually(t, func() bool { return b.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Invalidate(ctx, conn))
	assert.Empty(t, m.GetSchema(ctx, conn))
	require.Eventually(t, func() bool { return b.calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond,
		"a dispatch after invalidate must not join the running build")

	close(b.gates[0])
	time.Sleep(50 * time.Millisecond)
	_, ok := m.Peek(ctx, conn)
	assert.False(t, ok, "the build started before invalidate must not publish")

	close(b.gates[1])
	require.Eventually(t, func() bool {
		info, ok := m.Peek(ctx, conn)
		return ok && len(info) == 1 && info[0].Name == "new_table" && !cached(t, store, schemacache.BuildMarkerKey("crm"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPool_SupersededBuildKeepsNewerMarker(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory(0)
	marker := schemacache.BuildMarkerKey("crm")
	require.NoError(t, store.Set(ctx, marker, []byte("job-1"), 0))

	b := newGatedBuilder(crmSchema)
	p := NewPool(store, catalog(t, "crm"), b, Config{}, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := p.Build(ctx, "crm")
		errc <- err
	}()
	require.Eventually(t, func() bool { return b.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Set(ctx, marker, []byte("job-2"), 0))
	close(b.gates[0])

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	assert.False(t, cached(t, store, schemacache.SchemaKey("crm")))

	got, ok, err := store.Get(ctx, marker)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "job-2", string(got))
}
