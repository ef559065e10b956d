// Package app wires configuration into a running schema cache: the
// connection catalog, cache store, fallback file store, builders, job pool
// and manager.
package app

import (
	"context"
	"errors"
	"io"

	"github.com/koustreak/schemacache/internal/cache"
	"github.com/koustreak/schemacache/internal/config"
	"github.com/koustreak/schemacache/internal/database"
	_ "github.com/koustreak/schemacache/internal/database/mysql"
	_ "github.com/koustreak/schemacache/internal/database/postgres"
	_ "github.com/koustreak/schemacache/internal/database/sqlite"
	_ "github.com/koustreak/schemacache/internal/database/sqlserver"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/filestore"
	"github.com/koustreak/schemacache/internal/filestore/local"
	"github.com/koustreak/schemacache/internal/filestore/minio"
	"github.com/koustreak/schemacache/internal/jobs"
	"github.com/koustreak/schemacache/internal/logger"
	"github.com/koustreak/schemacache/internal/schema"
	"github.com/koustreak/schemacache/internal/schemacache"
)

// App holds the assembled components. Call Close when done.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Catalog *database.Catalog
	Store   cache.Store
	Builder *schema.Builder
	Pool    *jobs.Pool
	Manager *schemacache.Manager

	closers []io.Closer
}

// New assembles an App from cfg. The job pool is created but not started;
// run App.Pool.Run in its own goroutine to process dispatched builds.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Config: cfg, Log: log}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	a.Catalog = catalog

	store, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	files, err := openFileStore(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if files != nil {
		a.closers = append(a.closers, files)
	}

	live := schema.NewLiveBuilder(cfg.Filter(), log.With().Str("component", "live_builder").Logger())
	fallback := schema.NewFallbackBuilder(files, cfg.FallbackOptions(),
		log.With().Str("component", "fallback_builder").Logger())
	a.Builder = schema.NewBuilder(live, fallback, cfg.Policy(log), log)

	a.Pool = jobs.NewPool(store, catalog, a.Builder, cfg.PoolConfig(), log.With().Str("component", "jobs").Logger())
	a.Manager = schemacache.NewManager(store, a.Pool, schemacache.Options{JSONTTL: cfg.Cache.TTL}, log)

	log.InfoWith("schema cache assembled", map[string]any{
		"connections": len(catalog.All()),
		"cache":       cfg.Cache.Backend,
		"fallback":    cfg.Fallback.Store,
		"policy":      cfg.Introspection.Policy,
	})
	return a, nil
}

// Connection looks up a registered connection.
func (a *App) Connection(id string) (*database.Connection, error) {
	return a.Catalog.Lookup(id)
}

// Pending reports builds queued but not yet picked up by a worker.
func (a *App) Pending() int {
	return a.Pool.Pending()
}

// CacheStats reports the cache store's counters.
func (a *App) CacheStats(ctx context.Context) (cache.Stats, error) {
	m, ok := a.Store.(cache.Maintained)
	if !ok {
		return cache.Stats{}, errs.New(errs.ErrKindUnsupported, "cache store keeps no stats")
	}
	return m.Stats(ctx)
}

// RunPurger drops expired cache entries every cache.purge_interval until
// ctx is cancelled.
func (a *App) RunPurger(ctx context.Context) error {
	m, ok := a.Store.(cache.Maintained)
	if !ok {
		<-ctx.Done()
		return nil
	}
	return cache.RunPurger(ctx, m, a.Config.Cache.PurgeInterval, a.Log.With().Str("component", "purger").Logger())
}

// Close releases the cache and file stores.
func (a *App) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errList = append(errList, err)
		}
	}
	a.closers = nil
	return errors.Join(errList...)
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		return cache.OpenSQLite(ctx, cfg.Cache.Path, cfg.Cache.TTL)
	case config.BackendMemory:
		return cache.NewMemory(cfg.Cache.TTL), nil
	}
	return nil, errs.Newf(errs.ErrKindUnsupported, "cache backend %q", cfg.Cache.Backend)
}

// openFileStore returns nil when no fallback store is configured.
func openFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	fc := cfg.FileStore()
	if fc == nil {
		return nil, nil
	}
	switch fc.Provider {
	case filestore.ProviderLocal:
		return local.New(fc)
	case filestore.ProviderMinIO:
		return minio.New(ctx, fc)
	}
	return nil, errs.Newf(errs.ErrKindUnsupported, "file store provider %q", fc.Provider)
}
