// Package web serves the HTTP API: the public decide endpoint plus the
// authenticated operator surface for experiments, stats, cache control and
// diagnostics.
package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/splitserve/internal/auth"
	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/internal/observability"
	"github.com/haasonsaas/splitserve/internal/provider"
	"github.com/haasonsaas/splitserve/internal/store"
)

// CacheManager exposes provider cache control to the admin endpoints.
// *provider.Client implements it.
type CacheManager interface {
	PurgeCache(expiredOnly bool) (int, error)
	Cache() (provider.CacheStatus, error)
}

// ExperimentLister is implemented by sources that can enumerate their
// experiments, such as the local file source. The remote provider cannot;
// listing degrades gracefully when the source does not implement it.
type ExperimentLister interface {
	Experiments() []string
}

// Config holds HTTP API configuration.
type Config struct {
	// Session makes variation decisions (required).
	Session *experiment.Session
	// Source is the variation source behind the session, used by the
	// operator endpoints to inspect experiments directly.
	Source experiment.Source
	// Store is the assignment log (optional).
	Store store.Store
	// Cache exposes provider cache purge/status (optional).
	Cache CacheManager
	// AuthService guards the operator endpoints (optional).
	AuthService *auth.Service
	// Metrics records request and decision counters (optional).
	Metrics *observability.Metrics
	// Tracer wraps requests in spans when configured (optional).
	Tracer *observability.Tracer
	// Diagnostics is the buffer behind the diagnostics endpoint (optional).
	Diagnostics *observability.DiagnosticBuffer
	// BasePath is a URL prefix to mount the API under (default: none).
	BasePath string
	// AllowForce honors ?force= overrides on the decide endpoint.
	AllowForce bool
	// Version is reported by the health endpoint.
	Version string
	// ServerStartTime for uptime calculation.
	ServerStartTime time.Time
	// Logger for request logging.
	Logger *slog.Logger
}

// Handler is the main HTTP handler.
type Handler struct {
	config *Config
	mux    *http.ServeMux
}

// NewHandler creates the API handler.
func NewHandler(cfg *Config) (*Handler, error) {
	if cfg == nil || cfg.Session == nil {
		return nil, fmt.Errorf("experiment session is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ServerStartTime.IsZero() {
		cfg.ServerStartTime = time.Now()
	}
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")

	h := &Handler{
		config: cfg,
		mux:    http.NewServeMux(),
	}
	h.setupRoutes()
	return h, nil
}

// setupRoutes configures all HTTP routes.
func (h *Handler) setupRoutes() {
	// Public routes
	h.mux.HandleFunc("/healthz", h.handleHealthz)
	h.mux.HandleFunc("/v1/decide/", h.handleDecide)

	// Operator routes
	h.mux.HandleFunc("/v1/experiments", h.requireAuth(h.handleExperimentList))
	h.mux.HandleFunc("/v1/experiments/", h.requireAuth(h.handleExperiments))
	h.mux.HandleFunc("/v1/admin/cache", h.requireAuth(h.handleCacheStatus))
	h.mux.HandleFunc("/v1/admin/cache/purge", h.requireAuth(h.handleCachePurge))
	h.mux.HandleFunc("/v1/admin/diagnostics", h.requireAuth(h.handleDiagnostics))
	h.mux.HandleFunc("/v1/admin/config/schema", h.requireAuth(h.handleConfigSchema))
}

func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(h.config.AuthService, h.config.Logger)(next)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Strip base path prefix
	path := r.URL.Path
	if h.config.BasePath != "" {
		path = strings.TrimPrefix(path, h.config.BasePath)
		if path == "" {
			path = "/"
		}
	}
	r.URL.Path = path

	h.mux.ServeHTTP(w, r)
}

// Mount returns the handler with middleware applied.
func (h *Handler) Mount() http.Handler {
	var handler http.Handler = h

	handler = MetricsMiddleware(h.config.Metrics)(handler)
	handler = LoggingMiddleware(h.config.Logger)(handler)
	if h.config.Tracer != nil {
		handler = TracingMiddleware(h.config.Tracer)(handler)
	}
	handler = RequestIDMiddleware()(handler)

	return handler
}
