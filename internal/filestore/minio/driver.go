// Package minio reads DDL descriptions from a MinIO or S3 bucket.
//
//	store, err := minio.New(ctx, &filestore.Config{
//		Provider: filestore.ProviderMinIO,
//		Bucket:   "ddl",
//		MinIO:    filestore.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "minioadmin", SecretKey: "minioadmin"},
//	})
package minio

import (
	"context"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/filestore"
)

// Driver is safe for concurrent use.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New builds a client for cfg and pings the bucket before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	d, err := newDriver(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func newDriver(cfg *filestore.Config) (*Driver, error) {
	if cfg == nil || cfg.MinIO.Endpoint == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "minio bucket is required")
	}
	m := cfg.MinIO
	client, err := miniogo.New(m.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
		Secure: m.UseSSL,
		Region: m.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "create minio client", err)
	}
	return &Driver{client: client, bucket: cfg.Bucket}, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping "+d.bucket)
	}
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", d.bucket)
	}
	return nil
}

// Close is a no-op; the SDK client holds no persistent connections.
func (d *Driver) Close() error { return nil }

func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	if key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "object key is required")
	}
	bucket = d.bucketOrDefault(bucket)

	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "get "+bucket+"/"+key)
	}

	// GetObject is lazy; Stat forces the request so a missing key fails here.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "get "+bucket+"/"+key)
	}

	return &object{ReadCloser: obj, info: &filestore.ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}}, nil
}

func (d *Driver) bucketOrDefault(bucket string) string {
	if bucket == "" {
		return d.bucket
	}
	return bucket
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo { return o.info }
