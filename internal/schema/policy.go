package schema

import (
	"context"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/logger"
)

// Mode selects how a connection's schema is built.
type Mode string

const (
	ModeLive     Mode = "live"
	ModeFallback Mode = "fallback"
)

// ParseMode accepts "live" or "fallback".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeFallback:
		return Mode(s), nil
	}
	return "", errs.Newf(errs.ErrKindInvalidInput, "unknown introspection mode %q", s)
}

// Policy picks the build mode for a connection that has no explicit override.
type Policy interface {
	Resolve(ctx context.Context, conn *database.Connection) Mode
}

// DefaultLiveDrivers are the driver kinds trusted with live introspection
// when no other policy is configured.
var DefaultLiveDrivers = []database.Driver{database.DriverSQLServer}

// DriverPolicy introspects live only for an allow-list of driver kinds.
type DriverPolicy struct {
	live map[database.Driver]bool
}

func NewDriverPolicy(drivers ...database.Driver) DriverPolicy {
	p := DriverPolicy{live: make(map[database.Driver]bool, len(drivers))}
	for _, d := range drivers {
		p.live[d] = true
	}
	return p
}

func (p DriverPolicy) Resolve(_ context.Context, conn *database.Connection) Mode {
	if p.live[conn.Driver()] {
		return ModeLive
	}
	return ModeFallback
}

// StaticPolicy always answers with the same mode.
type StaticPolicy Mode

func (p StaticPolicy) Resolve(context.Context, *database.Connection) Mode {
	return Mode(p)
}

// ProbePolicy counts the connection's tables and introspects live only
// when there are at most MaxTables of them. Probe failures choose fallback.
type ProbePolicy struct {
	MaxTables int
	Log       *logger.Logger
}

func (p ProbePolicy) Resolve(ctx context.Context, conn *database.Connection) Mode {
	log := logger.OrNop(p.Log).With().Str("connection_id", conn.ID).Logger()

	h, err := conn.Open(ctx)
	if err != nil {
		log.WarnWith("table count probe could not connect, using fallback", err, nil)
		return ModeFallback
	}
	defer h.Close()

	n, err := h.CountTables(ctx)
	if err != nil {
		log.WarnWith("table count probe failed, using fallback", err, nil)
		return ModeFallback
	}
	if n > p.MaxTables {
		log.InfoWith("schema too large for live introspection", map[string]any{"tables": n, "max_live_tables": p.MaxTables})
		return ModeFallback
	}
	return ModeLive
}
