// Package api provides the HTTP API server for RateDeck
// Exposes rate deck comparison, adjustment and the run archive over JSON
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ratedeck/db/archive"
	"ratedeck/db/storage"
	"ratedeck/decision/adjustment"
	"ratedeck/decision/comparison"
	"ratedeck/decision/worker"
	rderrors "ratedeck/pkg/errors"
	"ratedeck/pkg/platform"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	runner     *worker.Runner
	store      storage.ReportStore
	archiver   *archive.Archiver
	logger     zerolog.Logger
	config     *Config
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
	APIKey         string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   150 * time.Second,
		RequestTimeout: 2 * time.Minute,
		MaxRequestSize: 64 * 1024 * 1024, // 64MB
		CORSOrigins:    []string{"*"},
	}
}

// NewServer creates a new API server. store may be nil, in which case
// archiving and the run endpoints are unavailable.
func NewServer(runner *worker.Runner, store storage.ReportStore, logger zerolog.Logger, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Server{
		runner: runner,
		store:  store,
		logger: logger.With().Str("component", "api").Logger(),
		config: config,
	}
	if store != nil {
		s.archiver = archive.NewArchiver(store, logger)
	}
	return s
}

// Handler builds the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/compare", s.handleCompare)
	mux.HandleFunc("POST /api/v1/compare/us", s.handleCompareUS)
	mux.HandleFunc("POST /api/v1/adjust", s.handleAdjust)
	mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)

	// Probes stay open when an API key is configured
	root := http.NewServeMux()
	root.HandleFunc("GET /health", s.handleHealth)
	root.HandleFunc("GET /ready", s.handleReady)
	root.Handle("/", platform.APIKeyMiddleware(s.config.APIKey, mux))

	return s.corsMiddleware(s.loggingMiddleware(root))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info().Int("port", s.config.Port).Msg("RateDeck API server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.logger.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// COMPARE ENDPOINTS
// =============================================================================

// CompareRequest is the API request for an A-Z comparison
type CompareRequest struct {
	comparison.Input
	Archive bool `json:"archive"`
}

// CompareResponse carries the reports and, when requested, the archive outcome
type CompareResponse struct {
	*comparison.Reports
	Archive *archive.ArchiveResult `json:"archive,omitempty"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Archive && s.archiver == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	reports, err := s.runner.Compare(ctx, req.Input)
	if err != nil {
		s.compareError(w, err)
		return
	}

	resp := CompareResponse{Reports: reports}
	if req.Archive {
		result, err := s.archiver.Archive(ctx, req.Input, reports)
		if err != nil {
			s.logger.Error().Err(err).Msg("archive failed")
			s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to archive run: %v", err))
			return
		}
		resp.Archive = result
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleCompareUS(w http.ResponseWriter, r *http.Request) {
	var req comparison.USInput
	if !s.decode(w, r, &req) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	reports, err := s.runner.CompareUS(ctx, req)
	if err != nil {
		s.compareError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, reports)
}

func (s *Server) compareError(w http.ResponseWriter, err error) {
	switch {
	case rderrors.IsInvalidInput(err):
		s.jsonError(w, http.StatusBadRequest, rderrors.MissingInputMessage)
	case errors.Is(err, context.DeadlineExceeded):
		s.jsonError(w, http.StatusGatewayTimeout, "comparison timed out")
	case errors.Is(err, context.Canceled):
		s.jsonError(w, http.StatusServiceUnavailable, "comparison cancelled")
	default:
		s.logger.Error().Err(err).Msg("comparison failed")
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("comparison failed: %v", err))
	}
}

// =============================================================================
// ADJUST ENDPOINT
// =============================================================================

// AdjustRequest applies rules to a rate deck
type AdjustRequest struct {
	Rules   []adjustment.Rule               `json:"rules"`
	Records []comparison.StandardizedRecord `json:"records"`
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !s.decode(w, r, &req) {
		return
	}

	engine, err := adjustment.NewEngine(req.Rules)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, engine.Apply(req.Records))
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

const defaultRunLimit = 20

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.archiver.List(r.Context(), limit)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.archiver.Get(r.Context(), id)
	if rderrors.IsNotFound(err) {
		s.jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get run: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.config.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
