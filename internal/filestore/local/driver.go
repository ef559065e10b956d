// Package local serves DDL descriptions from a directory on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/filestore"
)

// Driver is a filestore.Store rooted at a directory. Buckets map to
// subdirectories of the root and keys to slash-separated relative paths.
type Driver struct {
	root   string
	bucket string
}

// New returns a Driver for cfg.Root. The directory must already exist.
func New(cfg *filestore.Config) (*Driver, error) {
	if cfg == nil || cfg.Root == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "local filestore root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "resolve local filestore root", err)
	}
	d := &Driver{root: root, bucket: cfg.Bucket}
	if err := d.Ping(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping checks the root, and the default bucket directory when one is set.
func (d *Driver) Ping(context.Context) error {
	dir := d.root
	if d.bucket != "" {
		dir = filepath.Join(d.root, filepath.FromSlash(d.bucket))
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return mapError(err, "stat local filestore "+dir)
	}
	if !fi.IsDir() {
		return errs.Newf(errs.ErrKindInvalidInput, "local filestore %q is not a directory", dir)
	}
	return nil
}

func (d *Driver) Close() error { return nil }

func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "open object "+key, err)
	}
	path, err := d.resolve(bucket, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, mapError(err, "open object "+key)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapError(err, "stat object "+key)
	}
	if fi.IsDir() {
		f.Close()
		return nil, errs.Newf(errs.ErrKindNotFound, "object %q is a directory", key)
	}
	return &object{File: f, info: &filestore.ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		ETag:         fmt.Sprintf("%x-%x", fi.ModTime().UnixNano(), fi.Size()),
		LastModified: fi.ModTime(),
	}}, nil
}

// resolve maps bucket/key under root and refuses paths escaping it.
func (d *Driver) resolve(bucket, key string) (string, error) {
	if key == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "object key is required")
	}
	if bucket == "" {
		bucket = d.bucket
	}
	rel := filepath.FromSlash(strings.TrimPrefix(key, "/"))
	if bucket != "" {
		rel = filepath.Join(filepath.FromSlash(bucket), rel)
	}
	path := filepath.Join(d.root, rel)
	if path != d.root && !strings.HasPrefix(path, d.root+string(filepath.Separator)) {
		return "", errs.Newf(errs.ErrKindInvalidInput, "object key %q escapes the store root", key)
	}
	return path, nil
}

func mapError(err error, msg string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	default:
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}
}

type object struct {
	*os.File
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo { return o.info }
