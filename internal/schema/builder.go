package schema

import (
	"context"

	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/logger"
)

// Result is the outcome of one schema build.
type Result struct {
	Schema Info
	Mode   Mode

	// Fallback is only meaningful when Mode is ModeFallback.
	Fallback FallbackStatus

	// Cacheable is false for fallback builds that found nothing usable.
	Cacheable bool
}

// Builder chooses between live and fallback introspection for a connection
// and runs the chosen path.
type Builder struct {
	live     *LiveBuilder
	fallback *FallbackBuilder
	policy   Policy
	log      *logger.Logger
}

// NewBuilder wires the two build paths. A nil policy trusts DefaultLiveDrivers.
func NewBuilder(live *LiveBuilder, fallback *FallbackBuilder, policy Policy, log *logger.Logger) *Builder {
	if policy == nil {
		policy = NewDriverPolicy(DefaultLiveDrivers...)
	}
	return &Builder{live: live, fallback: fallback, policy: policy, log: logger.OrNop(log)}
}

// Mode returns the build mode for conn: its explicit override, or the policy's answer.
func (b *Builder) Mode(ctx context.Context, conn *database.Connection) Mode {
	if m, err := ParseMode(conn.Introspection); err == nil {
		return m
	}
	return b.policy.Resolve(ctx, conn)
}

// Build produces conn's schema. Only live introspection returns errors;
// the fallback path reports problems through Result.Fallback.
func (b *Builder) Build(ctx context.Context, conn *database.Connection) (Result, error) {
	if err := conn.Validate(); err != nil {
		return Result{}, err
	}

	mode := b.Mode(ctx, conn)
	b.log.With().
		Str("connection_id", conn.ID).
		Str("driver", string(conn.Driver())).
		Str("mode", string(mode)).
		Logger().
		Debug("building schema")

	if mode == ModeLive {
		info, err := b.live.Build(ctx, conn.ID, conn)
		if err != nil {
			return Result{Mode: ModeLive}, err
		}
		return Result{Schema: info, Mode: ModeLive, Cacheable: true}, nil
	}

	fr := b.fallback.Build(ctx, conn.FallbackKey)
	return Result{
		Schema:    fr.Schema,
		Mode:      ModeFallback,
		Fallback:  fr.Status,
		Cacheable: fr.Status == FallbackOK,
	}, nil
}
