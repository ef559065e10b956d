package config

import (
	"errors"
	"fmt"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
)

var knownDrivers = map[database.Driver]bool{
	database.DriverPostgres:  true,
	database.DriverMySQL:     true,
	database.DriverSQLServer: true,
	database.DriverSQLite:    true,
}

// Validate reports every problem found, joined into one
// errs.ErrKindInvalidInput error.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		add("log.format must be json or console, got %q", c.Log.Format)
	}

	switch c.Introspection.Policy {
	case PolicyDriver, PolicyLive, PolicyFallback:
	case PolicyProbe:
		if c.Introspection.MaxLiveTables <= 0 {
			add("introspection.max_live_tables must be positive for the probe policy")
		}
	default:
		add("introspection.policy must be one of driver, probe, live, fallback, got %q", c.Introspection.Policy)
	}
	for _, d := range c.Introspection.LiveDrivers {
		if !knownDrivers[database.NormalizeDriver(d)] {
			add("introspection.live_drivers: unknown driver %q", d)
		}
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Cache.Path == "" {
			add("cache.path is required for the sqlite backend")
		}
	default:
		add("cache.backend must be memory or sqlite, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl must not be negative")
	}
	if c.Cache.BuildMarkerTTL <= 0 {
		add("cache.build_marker_ttl must be positive")
	}
	if c.Cache.PurgeInterval < 0 {
		add("cache.purge_interval must not be negative")
	}

	if c.Jobs.Workers <= 0 {
		add("jobs.workers must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		add("jobs.queue_size must be positive")
	}
	if c.Jobs.BuildTimeout <= 0 {
		add("jobs.build_timeout must be positive")
	} else if c.Cache.BuildMarkerTTL > 0 && c.Jobs.BuildTimeout >= c.Cache.BuildMarkerTTL {
		// A build that outlives its marker is discarded as superseded.
		add("jobs.build_timeout must be shorter than cache.build_marker_ttl")
	}

	if c.Fallback.MaxBytes < 0 {
		add("fallback.max_bytes must not be negative")
	}
	switch c.Fallback.Store {
	case "":
	case "local":
		if c.Fallback.Root == "" {
			add("fallback.root is required for the local store")
		}
	case "minio":
		if c.Fallback.MinIO.Endpoint == "" {
			add("fallback.minio.endpoint is required for the minio store")
		}
		if c.Fallback.Bucket == "" {
			add("fallback.bucket is required for the minio store")
		}
	default:
		add("fallback.store must be local, minio or empty, got %q", c.Fallback.Store)
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}

	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		if conn.ID == "" {
			add("connections[%d]: id is required", i)
			continue
		}
		if seen[conn.ID] {
			add("connections[%d]: duplicate id %q", i, conn.ID)
		}
		seen[conn.ID] = true

		if !knownDrivers[database.NormalizeDriver(conn.Driver)] {
			add("connection %q: unknown driver %q", conn.ID, conn.Driver)
		}
		if conn.DSN == "" {
			add("connection %q: dsn is required", conn.ID)
		}
		switch conn.Introspection {
		case "", PolicyLive, PolicyFallback:
		default:
			add("connection %q: introspection must be live, fallback or empty, got %q", conn.ID, conn.Introspection)
		}
	}

	if len(problems) > 0 {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid configuration", errors.Join(problems...))
	}
	return nil
}
