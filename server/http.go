// Package server provides the HTTP server for the mirror's observability
// API.
package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubmirror/hubmirror/inventory"
	"github.com/hubmirror/hubmirror/metrics"
)

// Config holds server configuration.
type Config struct {
	// Address to listen on (e.g., ":8090")
	Address string

	// CacheRoot is the cache directory populated by the proxy layer and
	// scanned by the inventory.
	CacheRoot string

	// RequestHistorySize bounds the request metric history. Zero selects
	// the default.
	RequestHistorySize int

	// SystemHistorySize bounds the system snapshot history. Zero selects
	// the default.
	SystemHistorySize int

	// SampleInterval is the system sampling period. Zero selects the
	// default of 5 seconds.
	SampleInterval time.Duration

	// DiskPath is the mount point sampled for disk usage. Default "/".
	DiskPath string

	// Logger for the server
	Logger *slog.Logger
}

// Server is the observability HTTP server. It owns the metrics store, the
// background sampler and the cache inventory, and hands references to
// whichever layer needs them.
type Server struct {
	config     Config
	httpServer *http.Server
	logger     *slog.Logger

	store     *metrics.Store
	recorder  *metrics.Recorder
	sampler   *metrics.Sampler
	inventory *inventory.Inventory
}

// New creates a new server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = ":8090"
	}
	if cfg.CacheRoot == "" {
		cfg.CacheRoot = "./repos"
	}

	store := metrics.NewStore(metrics.StoreConfig{
		RequestHistorySize: cfg.RequestHistorySize,
		SystemHistorySize:  cfg.SystemHistorySize,
	})

	sampler := metrics.NewSampler(store, metrics.SamplerConfig{
		Interval: cfg.SampleInterval,
		DiskPath: cfg.DiskPath,
		Logger:   cfg.Logger.With("component", "sampler"),
	})

	s := &Server{
		config:    cfg,
		logger:    cfg.Logger,
		store:     store,
		recorder:  metrics.NewRecorder(store, cfg.Logger.With("component", "recorder")),
		sampler:   sampler,
		inventory: inventory.New(cfg.CacheRoot, inventory.WithLogger(cfg.Logger.With("component", "inventory"))),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      gzhttp.GzipHandler(s.loggingMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // inventory scans of a large cache take a while
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Store returns the metrics store so the proxy layer can record cache
// hits and misses.
func (s *Server) Store() *metrics.Store {
	return s.store
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Canonical exposition text for pull-based scrapers
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Go runtime/process metrics via the Prometheus client
	mux.Handle("GET /metrics/runtime", promhttp.Handler())

	// Cache inventory
	mux.HandleFunc("GET /api/cache/overview", s.handleOverview)
	mux.HandleFunc("GET /api/cache/repos", s.handleListRepos)
	mux.HandleFunc("GET /api/cache/repos/{type}/{org}/{repo}", s.handleRepoDetails)
	mux.HandleFunc("GET /api/cache/search", s.handleSearch)
	mux.HandleFunc("GET /api/cache/efficiency", s.handleEfficiency)

	// Live metrics
	mux.HandleFunc("GET /api/stats/requests", s.handleRequestStats)
	mux.HandleFunc("GET /api/stats/system", s.handleSystemStats)
	mux.HandleFunc("GET /api/stats/cache", s.handleCacheStats)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleMetrics serves the store's exposition text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, s.store.ExportText())
}

// loggingMiddleware logs each request, records its metrics exactly once
// and turns handler-set cache tags into hit/miss counter updates.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		r = InjectTags(r)
		tags := GetTags(r)

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		s.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"bytes_sent", wrapped.bytesWritten,
			"duration_ms", duration.Milliseconds(),
			"cache_result", string(tags.CacheResult),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		// Request bodies are read by handlers and may stream; ContentLength
		// -1 means unknown, recorded as 0.
		bytesReceived := r.ContentLength
		if bytesReceived < 0 {
			bytesReceived = 0
		}

		s.recorder.Record(r.Method, r.URL.Path, wrapped.status, duration, wrapped.bytesWritten, bytesReceived)

		switch tags.CacheResult {
		case CacheHit:
			s.store.RecordCacheHit()
		case CacheMiss:
			s.store.RecordCacheMiss()
		}
	})
}

// Start starts the background sampler and the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting system sampler", "interval", s.config.SampleInterval)
	if err := s.sampler.Start(context.Background()); err != nil {
		return fmt.Errorf("starting sampler: %w", err)
	}

	s.logger.Info("starting server", "address", s.config.Address, "cache_root", s.config.CacheRoot)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and stops the sampler.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	s.sampler.Stop()

	return s.httpServer.Shutdown(ctx)
}

// Address returns the server's listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written. It preserves http.Flusher and http.Hijacker for
// streaming support.
type responseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher for streaming responses.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for connection upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("hijacking not supported")
}

// Unwrap returns the underlying ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
