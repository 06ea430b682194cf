package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/maypok86/otter"

	"github.com/dgallion1/pmdaparse/internal/config"
	"github.com/dgallion1/pmdaparse/internal/extract"
	"github.com/dgallion1/pmdaparse/internal/metrics"
	"github.com/dgallion1/pmdaparse/internal/pipeline"
	"github.com/dgallion1/pmdaparse/internal/store"
)

// Server is the HTTP API server for pmdaparse.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	extractor    *pipeline.Worker
	store        *store.Store
	metrics      *metrics.Metrics
	cache        otter.Cache[string, []extract.Medicine]
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. extractor serves
// single-document requests and does not persist; st and m may be nil.
func NewServer(orch *pipeline.Orchestrator, extractor *pipeline.Worker, st *store.Store, m *metrics.Metrics, log *slog.Logger, cfg config.Config) (*Server, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	ttl := cfg.JobTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cache, err := otter.MustBuilder[string, []extract.Medicine](size).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build result cache: %w", err)
	}

	s := &Server{
		orchestrator: orch,
		extractor:    extractor,
		store:        st,
		metrics:      m,
		cache:        cache,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the result cache.
func (s *Server) Close() {
	s.cache.Close()
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/ingest/{jobID}/summary", s.handleIngestSummary)
		r.Get("/api/stats", s.handleStats)

		r.Get("/api/medicines/{code}", s.handleGetMedicine)
		r.Get("/api/search", s.handleSearch)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			jsonError(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
