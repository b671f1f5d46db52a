package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/jobs"
	"github.com/hireloop/jobradar/internal/middleware"
	"github.com/hireloop/jobradar/internal/orchestrator"
	"github.com/hireloop/jobradar/internal/registry"
)

const searchTimeout = 120 * time.Second

// Server wires HTTP handlers to the orchestrator and registry.
type Server struct {
	router   chi.Router
	orch     *orchestrator.Orchestrator
	registry *registry.Registry
	ledger   jobs.Ledger
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	orch *orchestrator.Orchestrator,
	reg *registry.Registry,
	ledger jobs.Ledger,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:     orch,
		registry: reg,
		ledger:   ledger,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(middleware.Metrics)
	r.Use(timeoutMiddleware(searchTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Get("/sources", s.sources)
		r.Get("/quota", s.quota)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	Terms      string   `json:"terms"`
	Location   string   `json:"location"`
	Platforms  []string `json:"platforms"`
	RemoteOnly bool     `json:"remote_only"`
	MaxResults int      `json:"max_results"`
	Page       int      `json:"page"`
	// Kinds optionally restricts the chain to backend kinds
	// ("metered-api", "free-api", "scraper").
	Kinds []string `json:"kinds"`
}

type searchResponse struct {
	Records []jobs.Record `json:"records"`
	Report  jobs.Report   `json:"report"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Terms == "" {
		s.writeError(w, http.StatusBadRequest, "terms required")
		return
	}
	opts, err := toOptions(req.Kinds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := jobs.Query{
		Terms:      req.Terms,
		Location:   req.Location,
		Platforms:  req.Platforms,
		RemoteOnly: req.RemoteOnly,
		MaxResults: req.MaxResults,
		Page:       req.Page,
	}
	records, report, err := s.orch.Fetch(r.Context(), query, opts)
	if err != nil {
		if errors.Is(err, jobs.ErrNoCoveringBackend) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []jobs.Record{}
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Records: records, Report: report})
}

func toOptions(kinds []string) (orchestrator.Options, error) {
	opts := orchestrator.Options{}
	for _, k := range kinds {
		switch kind := jobs.BackendKind(k); kind {
		case jobs.KindMeteredAPI, jobs.KindFreeAPI, jobs.KindScraper:
			opts.Kinds = append(opts.Kinds, kind)
		default:
			return orchestrator.Options{}, errors.New("unknown backend kind " + k)
		}
	}
	return opts, nil
}

type sourceInfo struct {
	jobs.Descriptor
	Credentials []string `json:"credentials,omitempty"`
}

func (s *Server) sources(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.Entries()
	out := make([]sourceInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, sourceInfo{
			Descriptor:  e.Descriptor,
			Credentials: e.Backend.Credentials(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sources":   out,
		"platforms": s.registry.Platforms(),
	})
}

func (s *Server) quota(w http.ResponseWriter, _ *http.Request) {
	var statuses []jobs.QuotaStatus
	for _, e := range s.registry.Entries() {
		if !e.Descriptor.Metered() {
			continue
		}
		status, err := s.ledger.Status(e.Descriptor.Name)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		statuses = append(statuses, status)
	}
	if statuses == nil {
		statuses = []jobs.QuotaStatus{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"quota": statuses})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
