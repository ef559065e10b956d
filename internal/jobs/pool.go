// Package jobs runs schema builds in the background and writes their
// results into the cache.
package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/koustreak/schemacache/internal/cache"
	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/logger"
	"github.com/koustreak/schemacache/internal/schema"
	"github.com/koustreak/schemacache/internal/schemacache"
)

// Resolver finds a registered connection by ID.
type Resolver interface {
	Lookup(id string) (*database.Connection, error)
}

// SchemaBuilder produces a connection's schema.
type SchemaBuilder interface {
	Build(ctx context.Context, conn *database.Connection) (schema.Result, error)
}

type Config struct {
	Workers   int
	QueueSize int

	// BuildTimeout bounds a single background build.
	BuildTimeout time.Duration

	// MarkerTTL bounds how long a crashed build can suppress new ones.
	MarkerTTL time.Duration

	// SchemaTTL is passed to the store when publishing a build.
	SchemaTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:      2,
		QueueSize:    64,
		BuildTimeout: 2 * time.Minute,
		MarkerTTL:    5 * time.Minute,
	}
}

type job struct {
	id           string
	connectionID string
	queuedAt     time.Time
}

// Pool implements schemacache.Dispatcher over a bounded queue of build jobs.
type Pool struct {
	store    cache.Store
	resolver Resolver
	builder  SchemaBuilder
	cfg      Config
	log      *logger.Logger

	queue    chan job
	inflight singleflight.Group
	running  atomic.Bool
}

var _ schemacache.Dispatcher = (*Pool)(nil)

func NewPool(store cache.Store, resolver Resolver, builder SchemaBuilder, cfg Config, log *logger.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = def.BuildTimeout
	}
	if cfg.MarkerTTL <= 0 {
		cfg.MarkerTTL = def.MarkerTTL
	}

	return &Pool{
		store:    store,
		resolver: resolver,
		builder:  builder,
		cfg:      cfg,
		log:      logger.OrNop(log),
		queue:    make(chan job, cfg.QueueSize),
	}
}

// Run starts the workers and blocks until ctx is cancelled.
// Jobs still queued at that point are dropped and their markers cleared,
// so a later process can dispatch them again.
func (p *Pool) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errs.New(errs.ErrKindInvalidInput, "job pool is already running")
	}
	defer p.running.Store(false)

	p.log.With().Int("workers", p.cfg.Workers).Int("queue_size", p.cfg.QueueSize).Logger().Info("job pool started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case j := <-p.queue:
					p.process(gctx, j)
				}
			}
		})
	}
	err := g.Wait()

	dropped := p.drain(context.WithoutCancel(ctx))
	p.log.With().Int("dropped", dropped).Logger().Info("job pool stopped")
	return err
}

// drain empties the queue without building.
func (p *Pool) drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case j := <-p.queue:
			p.release(ctx, j.connectionID, j.id)
			n++
		default:
			return n
		}
	}
}

// ErrSuperseded is returned by Build when the connection's cache was
// invalidated, or a newer build requested, while the build ran. The
// result is discarded.
var ErrSuperseded = errors.New("schema build superseded")

// Dispatch queues a build for connectionID unless one is already pending,
// and returns the empty schema a caller sees until the build lands.
// It never blocks on the build or on a full queue.
func (p *Pool) Dispatch(ctx context.Context, connectionID string) schema.Info {
	log := p.log.With().Str("connection_id", connectionID).Logger()
	marker := schemacache.BuildMarkerKey(connectionID)

	if _, pending, err := p.store.Get(ctx, marker); err != nil {
		log.WarnWith("read build marker", err, nil)
	} else if pending {
		log.Debug("schema build already pending")
		return schema.Info{}
	}

	j := job{id: uuid.NewString(), connectionID: connectionID, queuedAt: time.Now()}
	if err := p.store.Set(ctx, marker, []byte(j.id), p.cfg.MarkerTTL); err != nil {
		log.WarnWith("set build marker", err, nil)
	}

	select {
	case p.queue <- j:
		log.With().Str("job_id", j.id).Logger().Debug("schema build queued")
	default:
		log.WarnWith("schema build dropped: queue full", nil, map[string]any{"queue_size": p.cfg.QueueSize})
		p.release(ctx, connectionID, j.id)
	}
	return schema.Info{}
}

// Pending reports the number of queued jobs.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Build runs a build for connectionID now and publishes a cacheable result.
// It joins the pending build for the connection if there is one.
func (p *Pool) Build(ctx context.Context, connectionID string) (schema.Result, error) {
	jobID, err := p.claim(ctx, connectionID)
	if err != nil {
		return schema.Result{}, err
	}
	return p.build(ctx, connectionID, jobID)
}

// claim returns the job id held in connectionID's marker, registering a
// new one when no build is pending.
func (p *Pool) claim(ctx context.Context, connectionID string) (string, error) {
	marker := schemacache.BuildMarkerKey(connectionID)
	b, ok, err := p.store.Get(ctx, marker)
	if err != nil {
		return "", err
	}
	if ok && len(b) > 0 {
		return string(b), nil
	}
	id := uuid.NewString()
	if err := p.store.Set(ctx, marker, []byte(id), p.cfg.MarkerTTL); err != nil {
		return "", err
	}
	return id, nil
}

// build runs job jobID. Calls with the same job id share one build; a new
// job id (after Invalidate, say) always starts a fresh one.
func (p *Pool) build(ctx context.Context, connectionID, jobID string) (schema.Result, error) {
	v, err, _ := p.inflight.Do(jobID, func() (any, error) {
		defer p.release(ctx, connectionID, jobID)

		conn, err := p.resolver.Lookup(connectionID)
		if err != nil {
			return schema.Result{}, err
		}

		res, err := p.builder.Build(ctx, conn)
		if err != nil {
			return res, err
		}
		if !res.Cacheable {
			return res, nil
		}
		if !p.current(ctx, connectionID, jobID) {
			return res, ErrSuperseded
		}
		if err := schemacache.Publish(ctx, p.store, connectionID, res.Schema, p.cfg.SchemaTTL); err != nil {
			return res, err
		}
		// An Invalidate that landed during Publish would otherwise be lost.
		if !p.current(ctx, connectionID, jobID) {
			if err := p.store.Delete(context.WithoutCancel(ctx), schemacache.SchemaKey(connectionID)); err != nil {
				p.log.WarnWith("drop superseded schema", err, map[string]any{"connection_id": connectionID})
			}
			return res, ErrSuperseded
		}
		return res, nil
	})
	res, _ := v.(schema.Result)
	return res, err
}

func (p *Pool) process(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.BuildTimeout)
	defer cancel()

	log := p.log.With().
		Str("job_id", j.id).
		Str("connection_id", j.connectionID).
		Dur("queued", time.Since(j.queuedAt)).
		Logger()

	if !p.current(ctx, j.connectionID, j.id) {
		log.Debug("skipping superseded schema build")
		return
	}

	start := time.Now()
	res, err := p.build(ctx, j.connectionID, j.id)
	if errors.Is(err, ErrSuperseded) {
		log.Info("schema build superseded, result discarded")
		return
	}
	if err != nil {
		log.ErrorWith("schema build failed", err, map[string]any{"kind": errs.KindOf(err).String()})
		return
	}

	fields := map[string]any{
		"mode":     string(res.Mode),
		"tables":   len(res.Schema),
		"duration": time.Since(start).String(),
	}
	if !res.Cacheable {
		fields["fallback"] = res.Fallback.String()
		log.WarnWith("schema build produced nothing cacheable", nil, fields)
		return
	}
	log.InfoWith("schema build published", fields)
}

// current reports whether connectionID's marker still names jobID.
// A marker that cannot be read counts as superseded.
func (p *Pool) current(ctx context.Context, connectionID, jobID string) bool {
	b, ok, err := p.store.Get(context.WithoutCancel(ctx), schemacache.BuildMarkerKey(connectionID))
	if err != nil {
		p.log.WarnWith("read build marker", err, map[string]any{"connection_id": connectionID})
		return false
	}
	return ok && string(b) == jobID
}

// release clears connectionID's marker if it still names jobID, leaving a
// newer build's marker alone. It runs even when ctx has expired.
func (p *Pool) release(ctx context.Context, connectionID, jobID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if !p.current(ctx, connectionID, jobID) {
		return
	}
	if err := p.store.Delete(ctx, schemacache.BuildMarkerKey(connectionID)); err != nil {
		p.log.WarnWith("clear build marker", err, map[string]any{"connection_id": connectionID})
	}
}
