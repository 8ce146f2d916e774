package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"filehost/internal/config"
	"filehost/internal/storage"
	"filehost/internal/upload"
)

// BuildInfo is reported by the health endpoint.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config holds the dependencies of a Server.
type Config struct {
	Settings *config.Config
	Store    storage.Backend
	Logger   *logrus.Logger
	Build    BuildInfo
}

// Server serves uploads and downloads for one storage backend. Create it with
// New; the zero value is not usable.
type Server struct {
	httpServer *http.Server
	settings   *config.Config
	store      storage.Backend
	pipeline   *upload.Pipeline
	log        *logrus.Logger
	metrics    *Metrics
	registry   *prometheus.Registry
	limiter    *rateLimiter
	build      BuildInfo
	indexHTML  []byte

	// contentType guesses the media type served for a stored name.
	contentType func(name string) string
}

// New wires the upload pipeline, metrics and routes for cfg. It fails when
// settings or store are missing or the landing page cannot be rendered.
func New(cfg Config) (*Server, error) {
	if cfg.Settings == nil || cfg.Store == nil {
		return nil, errors.New("server: settings and store are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		settings: cfg.Settings,
		store:    cfg.Store,
		log:      cfg.Logger,
		metrics:  NewMetrics(registry),
		registry: registry,
		build:    cfg.Build,
		pipeline: upload.New(cfg.Store, upload.Options{
			Key:         cfg.Settings.Key,
			MaxFileSize: cfg.Settings.MaxFileSize(),
			FileURL:     cfg.Settings.FileURL,
			Logger:      cfg.Logger,
		}),
	}

	s.contentType = storage.ContentType

	index, err := renderIndex(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	s.indexHTML = index

	if cfg.Settings.UploadRateLimit > 0 {
		s.limiter = newRateLimiter(int(cfg.Settings.UploadRateLimit), time.Minute)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Settings.ListenAddr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	// Middleware added with Use only runs for matched routes, so the
	// fallback handlers are instrumented directly.
	r.NotFoundHandler = s.metrics.middleware(http.HandlerFunc(notFound))
	r.MethodNotAllowedHandler = s.metrics.middleware(http.HandlerFunc(methodNotAllowed))
	r.Use(s.metrics.middleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	var uploadHandler http.Handler = http.HandlerFunc(s.handleUpload)
	if s.limiter != nil {
		uploadHandler = s.limiter.middleware(uploadHandler)
	}

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/", uploadHandler).Methods(http.MethodPost)
	r.HandleFunc("/{filename}", s.handleDownload).Methods(http.MethodGet, http.MethodHead)

	// requestID -> logging -> security headers -> router
	var handler http.Handler = r
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on Addr and serves until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

// Shutdown stops the rate limiter sweeper and drains in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}
