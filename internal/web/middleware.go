package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/splitserve/internal/auth"
	"github.com/haasonsaas/splitserve/internal/observability"
)

// RequestIDMiddleware tags every request with an id. An incoming
// X-Request-ID header is honored so callers can correlate across hops.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", requestID)
			ctx := observability.AddRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			if logger != nil {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", wrapped.status,
					"duration", time.Since(start),
					"remote_addr", r.RemoteAddr,
					"request_id", observability.GetRequestID(r.Context()),
				)
			}
		})
	}
}

// MetricsMiddleware records request counts and latencies.
func MetricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			metrics.RecordHTTPRequest(
				r.Method,
				normalizeMetricPath(r.URL.Path),
				strconv.Itoa(wrapped.status),
				time.Since(start).Seconds(),
			)
		})
	}
}

// TracingMiddleware opens a span around each request.
func TracingMiddleware(tracer *observability.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tracer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.TraceHTTPRequest(r.Context(), r.Method, r.URL.Path)
			defer span.End()

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			tracer.SetAttributes(span, "http.status_code", wrapped.status)
		})
	}
}

// RequireAuth enforces authentication on a single route. Requests carry
// either a bearer token or an API key header; everything else gets a 401.
func RequireAuth(service *auth.Service, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if service is nil or disabled
			if service == nil || !service.Enabled() {
				next(w, r)
				return
			}

			// Try Bearer token first
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				token := strings.TrimSpace(authHeader[7:])
				principal, err := service.ValidateToken(token)
				if err == nil {
					ctx := auth.WithPrincipal(r.Context(), principal)
					next(w, r.WithContext(ctx))
					return
				}
				if logger != nil {
					logger.Warn("token validation failed", "error", err)
				}
			}

			// Try API key
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				apiKey = r.Header.Get("Api-Key")
			}
			if apiKey != "" {
				principal, err := service.ValidateAPIKey(apiKey)
				if err == nil {
					ctx := auth.WithPrincipal(r.Context(), principal)
					next(w, r.WithContext(ctx))
					return
				}
				if logger != nil {
					logger.Warn("api key validation failed", "error", err)
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if _, err := w.Write([]byte(`{"error":"unauthorized"}`)); err != nil {
				return
			}
		}
	}
}

// normalizeMetricPath collapses experiment ids out of paths so metric label
// cardinality stays bounded.
func normalizeMetricPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/decide/"):
		return "/v1/decide/:experiment"
	case strings.HasPrefix(path, "/v1/experiments/") && strings.HasSuffix(path, "/stats"):
		return "/v1/experiments/:experiment/stats"
	case strings.HasPrefix(path, "/v1/experiments/") && path != "/v1/experiments/":
		return "/v1/experiments/:experiment"
	default:
		return path
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
