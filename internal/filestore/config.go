package filestore

// Provider names where DDL descriptions are kept.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderMinIO Provider = "minio"
)

// DefaultMaxObjectSize caps ReadAll when Config.MaxObjectSize is unset.
const DefaultMaxObjectSize int64 = 8 << 20

type Config struct {
	Provider Provider

	// Root is the directory served by ProviderLocal.
	Root string

	// Bucket is used whenever a caller passes an empty bucket.
	// ProviderMinIO requires it.
	Bucket string

	MaxObjectSize int64

	MinIO MinIOConfig
}

// MinIOConfig reaches an S3-compatible server.
type MinIOConfig struct {
	Endpoint  string // host:port
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// Limit returns MaxObjectSize, or DefaultMaxObjectSize when unset.
func (c *Config) Limit() int64 {
	if c == nil || c.MaxObjectSize <= 0 {
		return DefaultMaxObjectSize
	}
	return c.MaxObjectSize
}
