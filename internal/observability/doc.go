// Package observability provides monitoring and debugging capabilities
// for splitserve through metrics, structured logging, distributed tracing
// and a lightweight diagnostic event stream.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// plus an in-process diagnostic event stream for inspecting recent
// decisions without scraping metrics or tailing logs.
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Variation decisions by experiment and outcome
//   - Upstream experiment fetch latency and status
//   - Provider cache hit rates
//   - HTTP request/response metrics
//   - Assignment store write outcomes
//   - Scheduled maintenance runs
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track a decision
//	metrics.RecordDecision("myExp", "fresh", "3")
//
//	// Track an upstream fetch
//	start := time.Now()
//	// ... fetch experiment definition ...
//	metrics.RecordProviderFetch("success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx := observability.AddRequestID(ctx, requestID)
//	logger.Info(ctx, "decision served",
//	    "experiment_id", experimentID,
//	    "variation", variation,
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "provider fetch failed",
//	    "error", err,
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// Components that take a plain *slog.Logger can share the configured
// handler through Logger.Slog().
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track requests across
// components. With no configured endpoint the tracer is a no-op, so
// callers never need to branch on whether tracing is enabled.
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "splitserve",
//	    ServiceVersion: "1.0.0",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceDecision(ctx, experimentID)
//	defer span.End()
//	if err != nil {
//	    tracer.RecordError(span, err)
//	}
//
// # Diagnostics
//
// The diagnostic event stream emits typed events (decisions, provider
// fetches, cache purges, janitor runs) to registered listeners. It is
// disabled by default and costs a single mutex read when off.
//
//	observability.SetDiagnosticsEnabled(true)
//	buf := observability.NewDiagnosticBuffer(256)
//	unsubscribe := observability.OnDiagnosticEvent(buf.Record)
//	defer unsubscribe()
//
//	// later, e.g. from an admin endpoint:
//	events := buf.Snapshot()
//
// # Context Propagation
//
// All components integrate with Go's context for correlation:
//
//	ctx = observability.AddRequestID(ctx, "req-123")
//	logger.Info(ctx, "processing") // includes request_id
//	ctx, span := tracer.Start(ctx, "operation")
//
// # Testing
//
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//   - ResetDiagnosticsForTest clears listeners between tests
package observability
