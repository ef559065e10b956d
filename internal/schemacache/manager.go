// Package schemacache serves connection schemas out of a cache store and
// hands misses to an asynchronous builder.
//
// Reads never block on introspection: a miss returns an empty schema right
// away and the caller is expected to ask again once the build lands.
package schemacache

import (
	"context"
	"time"

	"github.com/koustreak/schemacache/internal/cache"
	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/logger"
	"github.com/koustreak/schemacache/internal/schema"
)

// Dispatcher schedules a schema build without waiting for it.
// The returned value is what the caller sees for the miss.
type Dispatcher interface {
	Dispatch(ctx context.Context, connectionID string) schema.Info
}

// Options tunes entry lifetimes. Zero values defer to the store default.
type Options struct {
	JSONTTL time.Duration
}

// Manager is safe for concurrent use.
type Manager struct {
	store      cache.Store
	dispatcher Dispatcher
	opts       Options
	log        *logger.Logger
}

func NewManager(store cache.Store, dispatcher Dispatcher, opts Options, log *logger.Logger) *Manager {
	return &Manager{
		store:      store,
		dispatcher: dispatcher,
		opts:       opts,
		log:        logger.OrNop(log),
	}
}

// GetSchema returns the cached schema for conn, or dispatches a build and
// returns the dispatcher's placeholder.
func (m *Manager) GetSchema(ctx context.Context, conn *database.Connection) schema.Info {
	info, _ := m.getSchema(ctx, conn)
	return info
}

// getSchema also reports whether the result came from the cache.
func (m *Manager) getSchema(ctx context.Context, conn *database.Connection) (schema.Info, bool) {
	if err := conn.Validate(); err != nil {
		m.log.WarnWith("schema requested for invalid connection", err, nil)
		return schema.Info{}, false
	}

	if info, ok := m.peek(ctx, conn.ID); ok {
		return info, true
	}

	m.log.With().Str("connection_id", conn.ID).Logger().Debug("schema cache miss")
	info := m.dispatcher.Dispatch(ctx, conn.ID)
	if info == nil {
		info = schema.Info{}
	}
	return info, false
}

// GetJSONSchema returns the table to column-names projection of conn's schema.
func (m *Manager) GetJSONSchema(ctx context.Context, conn *database.Connection) schema.JSONSchema {
	if err := conn.Validate(); err != nil {
		m.log.WarnWith("json schema requested for invalid connection", err, nil)
		return schema.JSONSchema{}
	}

	key := JSONSchemaKey(conn.ID)
	if b, ok := m.get(ctx, key); ok {
		js, err := decodeJSONSchema(b)
		if err == nil {
			return js
		}
		m.discard(ctx, key, err)
	}

	info, cached := m.getSchema(ctx, conn)
	js := schema.ToJSON(info)
	if !cached {
		return js
	}

	b, err := encodeJSONSchema(js)
	if err == nil {
		err = m.store.Set(ctx, key, b, m.opts.JSONTTL)
	}
	if err != nil {
		m.log.WarnWith("store json schema", err, map[string]any{"connection_id": conn.ID})
	}
	return js
}

// Peek returns the cached schema without scheduling a build.
func (m *Manager) Peek(ctx context.Context, conn *database.Connection) (schema.Info, bool) {
	if conn == nil || conn.ID == "" {
		return schema.Info{}, false
	}
	return m.peek(ctx, conn.ID)
}

// Invalidate drops every cache entry held for conn. Calling it twice is harmless.
func (m *Manager) Invalidate(ctx context.Context, conn *database.Connection) error {
	if conn == nil || conn.ID == "" {
		return errs.New(errs.ErrKindInvalidInput, "invalidate: connection has no id")
	}

	for _, key := range []string{SchemaKey(conn.ID), JSONSchemaKey(conn.ID), BuildMarkerKey(conn.ID)} {
		if err := m.store.Delete(ctx, key); err != nil {
			return errs.Wrapf(errs.KindOf(err), err, "invalidate %s", conn.ID)
		}
	}

	m.log.With().Str("connection_id", conn.ID).Logger().Info("schema cache invalidated")
	return nil
}

func (m *Manager) peek(ctx context.Context, connectionID string) (schema.Info, bool) {
	key := SchemaKey(connectionID)
	b, ok := m.get(ctx, key)
	if !ok {
		return schema.Info{}, false
	}
	info, err := decodeSchema(b)
	if err != nil {
		m.discard(ctx, key, err)
		return schema.Info{}, false
	}
	return info, true
}

// get reads key, treating store failures as misses.
func (m *Manager) get(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.log.WarnWith("cache read failed", err, map[string]any{"key": key})
		return nil, false
	}
	return b, ok
}

func (m *Manager) discard(ctx context.Context, key string, cause error) {
	m.log.WarnWith("dropping undecodable cache entry", cause, map[string]any{"key": key})
	if err := m.store.Delete(ctx, key); err != nil {
		m.log.WarnWith("delete cache entry", err, map[string]any{"key": key})
	}
}
