package database

import (
	"sync"

	"github.com/koustreak/schemacache/internal/errs"
)

// Catalog holds the registered connections keyed by ID, in registration order.
type Catalog struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Connection
}

// NewCatalog builds a catalog from conns. Duplicate or empty IDs are rejected.
func NewCatalog(conns ...*Connection) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Connection, len(conns))}
	for _, conn := range conns {
		if err := c.Add(conn); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers conn.
func (c *Catalog) Add(conn *Connection) error {
	if conn == nil || conn.ID == "" {
		return errs.New(errs.ErrKindInvalidInput, "connection id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.byID[conn.ID]; dup {
		return errs.Newf(errs.ErrKindInvalidInput, "duplicate connection id %q", conn.ID)
	}
	c.byID[conn.ID] = conn
	c.order = append(c.order, conn.ID)
	return nil
}

// Lookup returns the connection registered under id.
func (c *Catalog) Lookup(id string) (*Connection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conn, ok := c.byID[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "connection %q not found", id)
	}
	return conn, nil
}

// All returns every connection in registration order.
func (c *Catalog) All() []*Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Connection, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
