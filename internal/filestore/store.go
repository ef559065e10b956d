// Package filestore is the read-only object storage that offline DDL
// descriptions are loaded from. Providers live in subpackages (local
// directory, MinIO / S3); callers depend only on this package.
//
//	store, err := local.New(&filestore.Config{Provider: filestore.ProviderLocal, Root: "./ddl"})
//	if err != nil { ... }
//	defer store.Close()
//
//	data, info, err := filestore.ReadAll(ctx, store, "", "warehouse.yaml", filestore.DefaultMaxObjectSize)
package filestore

import "context"

type Store interface {
	// Ping verifies the backend is reachable and the default bucket exists.
	Ping(ctx context.Context) error

	Close() error

	// GetObject opens the object at key inside bucket; an empty bucket
	// means the configured default. A missing object is ErrKindNotFound.
	GetObject(ctx context.Context, bucket, key string) (Object, error)
}
