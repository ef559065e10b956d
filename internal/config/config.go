// Package config loads schemacache settings from defaults, a YAML file,
// SCHEMACACHE_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import "time"

// Config holds all schemacache configuration.
type Config struct {
	Log           LogConfig           `koanf:"log"`
	Schema        SchemaConfig        `koanf:"schema"`
	Introspection IntrospectionConfig `koanf:"introspection"`
	Cache         CacheConfig         `koanf:"cache"`
	Jobs          JobsConfig          `koanf:"jobs"`
	Fallback      FallbackConfig      `koanf:"fallback"`
	Server        ServerConfig        `koanf:"server"`
	Connections   []ConnectionConfig  `koanf:"connections"`

	// File is the configuration file that was read, if any.
	File string `koanf:"-"`
}

type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	TimeFormat string `koanf:"time_format"`
}

// SchemaConfig is the table filter applied to live builds.
type SchemaConfig struct {
	// IncludePrefixes left unset disables the allow-list; an explicit empty
	// list keeps no tables at all.
	IncludePrefixes []string `koanf:"include_prefixes"`
	ExcludePrefixes []string `koanf:"exclude_prefixes"`
	IncludeViews    bool     `koanf:"include_views"`
}

type IntrospectionConfig struct {
	// Policy is one of driver, probe, live, fallback.
	Policy        string   `koanf:"policy"`
	LiveDrivers   []string `koanf:"live_drivers"`
	MaxLiveTables int      `koanf:"max_live_tables"`
}

type CacheConfig struct {
	// Backend is memory or sqlite.
	Backend        string        `koanf:"backend"`
	Path           string        `koanf:"path"`
	TTL            time.Duration `koanf:"ttl"`
	BuildMarkerTTL time.Duration `koanf:"build_marker_ttl"`

	// PurgeInterval is how often serve drops expired entries; zero disables it.
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

type JobsConfig struct {
	Workers      int           `koanf:"workers"`
	QueueSize    int           `koanf:"queue_size"`
	BuildTimeout time.Duration `koanf:"build_timeout"`
}

// FallbackConfig locates offline DDL descriptions.
type FallbackConfig struct {
	// Store is local, minio, or empty for no fallback source.
	Store  string      `koanf:"store"`
	Root   string      `koanf:"root"`
	Bucket string      `koanf:"bucket"`
	Key    string      `koanf:"key"`
	MinIO  MinIOConfig `koanf:"minio"`

	// MaxBytes caps the size of a description.
	MaxBytes int64 `koanf:"max_bytes"`
}

type MinIOConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	Region    string `koanf:"region"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ConnectionConfig registers one database.
type ConnectionConfig struct {
	ID     string `koanf:"id"`
	Name   string `koanf:"name"`
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	Schema string `koanf:"schema"`

	// Introspection overrides the policy with live or fallback.
	Introspection string `koanf:"introspection"`
	FallbackKey   string `koanf:"fallback_key"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

// Policy names accepted by IntrospectionConfig.Policy.
const (
	PolicyDriver   = "driver"
	PolicyProbe    = "probe"
	PolicyLive     = "live"
	PolicyFallback = "fallback"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// defaults is loaded first, as a flat key map.
func defaults() map[string]any {
	return map[string]any{
		"log.level":                     "info",
		"log.format":                    "json",
		"log.time_format":               "rfc3339",
		"schema.include_views":          false,
		"introspection.policy":          PolicyDriver,
		"introspection.live_drivers":    []string{"sqlserver"},
		"introspection.max_live_tables": 500,
		"cache.backend":                 BackendMemory,
		"cache.path":                    "schemacache.db",
		"cache.ttl":                     "24h",
		"cache.build_marker_ttl":        "5m",
		"cache.purge_interval":          "10m",
		"jobs.workers":                  2,
		"jobs.queue_size":               64,
		"jobs.build_timeout":            "2m",
		"fallback.key":                  "schema.yaml",
		"server.addr":                   ":8080",
		"server.read_timeout":           "15s",
		"server.write_timeout":          "60s",
	}
}
