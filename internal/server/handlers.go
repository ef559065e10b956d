package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/schemacache/internal/cache"
	"github.com/koustreak/schemacache/internal/database"
	"github.com/koustreak/schemacache/internal/errs"
	"github.com/koustreak/schemacache/internal/logger"
	"github.com/koustreak/schemacache/internal/schema"
)

type connectionResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Driver string `json:"driver"`
	Cached bool   `json:"cached"`
}

type healthResponse struct {
	Status        string       `json:"status"`
	PendingBuilds *int         `json:"pending_builds,omitempty"`
	Cache         *cache.Stats `json:"cache,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// handleHealth reports 503 when the cache store cannot be read.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	st := s.cfg.Status
	if st == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	pending := st.Pending()
	resp.PendingBuilds = &pending
	stats, err := st.CacheStats(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).WarnWith("read cache stats", err, nil)
		resp.Status = "degraded"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Cache = &stats
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	all := s.conns.All()
	resp := make([]connectionResponse, 0, len(all))
	for _, c := range all {
		_, cached := s.schemas.Peek(r.Context(), c)
		resp = append(resp, connectionResponse{
			ID:     c.ID,
			Name:   c.Name,
			Driver: string(c.Driver()),
			Cached: cached,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetSchema answers a miss with an empty list while the build runs.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}

	info, hit := s.schemas.Peek(r.Context(), conn)
	if !hit {
		info = s.schemas.GetSchema(r.Context(), conn)
	}
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetJSONSchema(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}

	_, hit := s.schemas.Peek(r.Context(), conn)
	js := s.schemas.GetJSONSchema(r.Context(), conn)
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, js)
}

// handleGetTable answers a miss with an empty table while the build runs.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "table")

	info, hit := s.schemas.Peek(r.Context(), conn)
	setCacheHeader(w, hit)
	if !hit {
		s.schemas.GetSchema(r.Context(), conn)
		writeJSON(w, http.StatusOK, schema.Table{Name: name, Columns: []schema.Column{}})
		return
	}

	tbl, found := info.Table(name)
	if !found {
		writeError(w, http.StatusNotFound, "table "+name+" not found in "+conn.ID)
		return
	}
	writeJSON(w, http.StatusOK, tbl)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	if err := s.schemas.Invalidate(r.Context(), conn); err != nil {
		logger.FromContext(r.Context()).ErrorWith("invalidate schema", err, map[string]any{"connection_id": conn.ID})
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// connection resolves the {id} URL parameter, writing a 404 when unknown.
func (s *Server) connection(w http.ResponseWriter, r *http.Request) (*database.Connection, bool) {
	id := chi.URLParam(r, "id")
	conn, err := s.conns.Lookup(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}
	return conn, true
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set(CacheHeader, "hit")
	} else {
		w.Header().Set(CacheHeader, "miss")
	}
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput, errs.ErrKindInvalidConnection:
		return http.StatusBadRequest
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
