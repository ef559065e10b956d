package config

import (
	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/filestore"
	"github.com/koustreak/schemacache/internal/jobs"
	"github.com/koustreak/schemacache/internal/logger"
	"github.com/koustreak/schemacache/internal/schema"
)

// Logger returns the logger settings. Output is left to logger.New's default.
func (c *Config) Logger() *logger.Config {
	return &logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
	}
}

func (c *Config) Filter() schema.Filter {
	return schema.Filter{
		Includes:     c.Schema.IncludePrefixes,
		Excludes:     c.Schema.ExcludePrefixes,
		IncludeViews: c.Schema.IncludeViews,
	}
}

// Policy builds the configured introspection policy.
func (c *Config) Policy(log *logger.Logger) schema.Policy {
	switch c.Introspection.Policy {
	case PolicyProbe:
		return schema.ProbePolicy{MaxTables: c.Introspection.MaxLiveTables, Log: log}
	case PolicyLive:
		return schema.StaticPolicy(schema.ModeLive)
	case PolicyFallback:
		return schema.StaticPolicy(schema.ModeFallback)
	}

	drivers := make([]database.Driver, 0, len(c.Introspection.LiveDrivers))
	for _, d := range c.Introspection.LiveDrivers {
		drivers = append(drivers, database.NormalizeDriver(d))
	}
	return schema.NewDriverPolicy(drivers...)
}

// FileStore returns the fallback store settings, or nil when no store is configured.
func (c *Config) FileStore() *filestore.Config {
	f := c.Fallback
	switch f.Store {
	case "local":
		return &filestore.Config{Provider: filestore.ProviderLocal, Root: f.Root, Bucket: f.Bucket, MaxObjectSize: f.MaxBytes}
	case "minio":
		return &filestore.Config{
			Provider:      filestore.ProviderMinIO,
			Bucket:        f.Bucket,
			MaxObjectSize: f.MaxBytes,
			MinIO: filestore.MinIOConfig{
				Endpoint:  f.MinIO.Endpoint,
				AccessKey: f.MinIO.AccessKey,
				SecretKey: f.MinIO.SecretKey,
				UseSSL:    f.MinIO.UseSSL,
				Region:    f.MinIO.Region,
			},
		}
	}
	return nil
}

// FallbackOptions configures the fallback builder. The bucket is left to
// the store's default.
func (c *Config) FallbackOptions() schema.FallbackOptions {
	return schema.FallbackOptions{DefaultKey: c.Fallback.Key, MaxBytes: c.Fallback.MaxBytes}
}

func (c *Config) PoolConfig() jobs.Config {
	return jobs.Config{
		Workers:      c.Jobs.Workers,
		QueueSize:    c.Jobs.QueueSize,
		BuildTimeout: c.Jobs.BuildTimeout,
		MarkerTTL:    c.Cache.BuildMarkerTTL,
		SchemaTTL:    c.Cache.TTL,
	}
}

// Connection converts one entry into a database.Connection, keeping the
// database package defaults for unset pool and timeout settings.
func (cc ConnectionConfig) Connection() *database.Connection {
	cfg := database.DefaultConfig(database.NormalizeDriver(cc.Driver), cc.DSN)
	cfg.Schema = cc.Schema
	if cc.MaxOpenConns > 0 {
		cfg.MaxOpenConns = cc.MaxOpenConns
	}
	if cc.MaxIdleConns > 0 {
		cfg.MaxIdleConns = cc.MaxIdleConns
	}
	if cc.ConnMaxLifetime > 0 {
		cfg.ConnMaxLifetime = cc.ConnMaxLifetime
	}
	if cc.ConnectTimeout > 0 {
		cfg.ConnectTimeout = cc.ConnectTimeout
	}
	if cc.QueryTimeout > 0 {
		cfg.QueryTimeout = cc.QueryTimeout
	}

	name := cc.Name
	if name == "" {
		name = cc.ID
	}
	return &database.Connection{
		ID:            cc.ID,
		Name:          name,
		Config:        cfg,
		Introspection: cc.Introspection,
		FallbackKey:   cc.FallbackKey,
	}
}

// Catalog registers every configured connection.
func (c *Config) Catalog() (*database.Catalog, error) {
	conns := make([]*database.Connection, 0, len(c.Connections))
	for _, cc := range c.Connections {
		conns = append(conns, cc.Connection())
	}
	return database.NewCatalog(conns...)
}
