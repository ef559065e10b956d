package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/koustreak/schemacache/internal/errs"
)

// s3Kinds maps S3 error codes to error kinds. Codes not listed fall back
// to the HTTP status.
var s3Kinds = map[string]errs.ErrKind{
	"NoSuchBucket":          errs.ErrKindNotFound,
	"NoSuchKey":             errs.ErrKindNotFound,
	"AccessDenied":          errs.ErrKindPermissionDenied,
	"InvalidAccessKeyId":    errs.ErrKindPermissionDenied,
	"SignatureDoesNotMatch": errs.ErrKindPermissionDenied,
	"InvalidBucketName":     errs.ErrKindInvalidInput,
	"InvalidObjectName":     errs.ErrKindInvalidInput,
	"RequestTimeout":        errs.ErrKindTimeout,
	"SlowDown":              errs.ErrKindTimeout,
}

func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	if kind, ok := s3Kinds[resp.Code]; ok {
		return errs.Wrap(kind, msg, err)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	case http.StatusBadRequest:
		return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
