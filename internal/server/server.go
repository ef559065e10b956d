// Package server exposes the schema cache over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/schemacache/internal/cache"
	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/logger"
	"github.com/koustreak/schemacache/internal/schema"
)

// CacheHeader reports whether a schema response came from the cache.
const CacheHeader = "X-Schema-Cache"

// Schemas is the schema cache surface the handlers call.
type Schemas interface {
	GetSchema(ctx context.Context, conn *database.Connection) schema.Info
	GetJSONSchema(ctx context.Context, conn *database.Connection) schema.JSONSchema
	Invalidate(ctx context.Context, conn *database.Connection) error
	Peek(ctx context.Context, conn *database.Connection) (schema.Info, bool)
}

// Connections resolves connection IDs from the URL.
type Connections interface {
	Lookup(id string) (*database.Connection, error)
	All() []*database.Connection
}

// Status reports background state for /healthz.
type Status interface {
	Pending() int
	CacheStats(ctx context.Context) (cache.Stats, error)
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Status is optional; without it /healthz only reports liveness.
	Status Status
}

type Server struct {
	cfg     Config
	conns   Connections
	schemas Schemas
	log     *logger.Logger
}

func New(cfg Config, conns Connections, schemas Schemas, log *logger.Logger) *Server {
	return &Server{cfg: cfg, conns: conns, schemas: schemas, log: logger.OrNop(log)}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.Recoverer,
		s.requestLogger,
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/connections", func(r chi.Router) {
		r.Get("/", s.handleListConnections)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/schema", s.handleGetSchema)
			r.Get("/schema.json", s.handleGetJSONSchema)
			r.Get("/schema/tables/{table}", s.handleGetTable)
			r.Delete("/schema", s.handleInvalidate)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", s.cfg.Addr).Logger().Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

// requestLogger logs one line per request and stores a request-scoped
// logger in the request context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := s.log.With().Str("request_id", chimw.GetReqID(r.Context())).Logger()
		next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

		s.log.Request(r.Method, r.URL.Path, ww.Status(), time.Since(start), chimw.GetReqID(r.Context()))
	})
}
