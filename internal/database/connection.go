package database

import (
	"context"
	"strings"

	"github.com/koustreak/schemacache/internal/errs"
)

// Connection is a registered database the schema cache describes.
type Connection struct {
	// ID is the stable identifier cache keys derive from.
	ID   string
	Name string

	Config *Config

	// Introspection forces "live" or "fallback" for this connection.
	// Empty leaves the choice to the configured policy.
	Introspection string

	// FallbackKey names this connection's offline DDL description in the
	// fallback store. Empty uses the store's default key.
	FallbackKey string
}

// Validate reports an errs.ErrKindInvalidConnection error when the
// connection cannot be introspected or cached at all.
func (c *Connection) Validate() error {
	if c == nil {
		return errs.New(errs.ErrKindInvalidConnection, "connection is nil")
	}
	if strings.TrimSpace(c.ID) == "" {
		return errs.New(errs.ErrKindInvalidConnection, "connection id is empty")
	}
	if c.Config == nil {
		return errs.Newf(errs.ErrKindInvalidConnection, "connection %q has no database config", c.ID)
	}
	if c.Config.DSN == "" {
		return errs.Newf(errs.ErrKindInvalidConnection, "connection %q has an empty DSN", c.ID)
	}
	if _, err := Lookup(c.Config.Driver); err != nil {
		return errs.Wrapf(errs.ErrKindInvalidConnection, err, "connection %q", c.ID)
	}
	switch c.Introspection {
	case "", "live", "fallback":
	default:
		return errs.Newf(errs.ErrKindInvalidConnection, "connection %q: unknown introspection mode %q", c.ID, c.Introspection)
	}
	return nil
}

// Driver returns the connection's driver kind, or "" when unset.
func (c *Connection) Driver() Driver {
	if c == nil || c.Config == nil {
		return ""
	}
	return c.Config.Driver
}

// Open acquires a scoped introspection handle. The caller must Close it.
func (c *Connection) Open(ctx context.Context) (Introspector, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return OpenHandle(ctx, c.Config)
}
