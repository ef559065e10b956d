package schemacache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/koustreak/schemacache/internal/cache"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/schema"
)

func encodeSchema(info schema.Info) ([]byte, error) {
	if info == nil {
		info = schema.Info{}
	}
	return json.Marshal(info)
}

func decodeSchema(b []byte) (schema.Info, error) {
	var info schema.Info
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, err
	}
	if info == nil {
		info = schema.Info{}
	}
	return info, nil
}

func encodeJSONSchema(s schema.JSONSchema) ([]byte, error) {
	return json.Marshal(s)
}

func decodeJSONSchema(b []byte) (schema.JSONSchema, error) {
	var s schema.JSONSchema
	err := json.Unmarshal(b, &s)
	return s, err
}

// Publish stores a completed build for connectionID and drops the JSON
// projection derived from the previous one.
func Publish(ctx context.Context, store cache.Store, connectionID string, info schema.Info, ttl time.Duration) error {
	if connectionID == "" {
		return errs.New(errs.ErrKindInvalidInput, "publish schema: empty connection id")
	}
	b, err := encodeSchema(info)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "encode schema", err)
	}
	if err := store.Set(ctx, SchemaKey(connectionID), b, ttl); err != nil {
		return err
	}
	return store.Delete(ctx, JSONSchemaKey(connectionID))
}
