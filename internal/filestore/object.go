package filestore

import (
	"context"
	"io"
	"time"

	"github.com/koustreak/schemacache/internal/errs"
)

// ObjectInfo identifies the revision of a description that was read.
type ObjectInfo struct {
	Key          string
	Size         int64 // -1 when the backend does not report it
	ETag         string
	LastModified time.Time
}

// Object streams one description. Close it after reading.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ReadAll reads the object at bucket/key whole. Objects over limit bytes
// are refused with ErrKindInvalidInput; a limit <= 0 reads without bound.
func ReadAll(ctx context.Context, s Store, bucket, key string, limit int64) ([]byte, *ObjectInfo, error) {
	obj, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, nil, err
	}
	defer obj.Close()

	info := obj.Info()
	if info == nil {
		info = &ObjectInfo{Key: key, Size: -1}
	}
	if limit > 0 && info.Size > limit {
		return nil, info, errs.Newf(errs.ErrKindInvalidInput, "object %q is %d bytes, limit is %d", key, info.Size, limit)
	}

	var r io.Reader = obj
	if limit > 0 {
		r = io.LimitReader(obj, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, info, errs.Wrapf(errs.ErrKindQueryFailed, err, "read object %q", key)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, info, errs.Newf(errs.ErrKindInvalidInput, "object %q exceeds %d bytes", key, limit)
	}
	return data, info, nil
}
