package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/splitserve/internal/auth"
	"github.com/haasonsaas/splitserve/internal/config"
	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/internal/janitor"
	"github.com/haasonsaas/splitserve/internal/observability"
	"github.com/haasonsaas/splitserve/internal/provider"
	"github.com/haasonsaas/splitserve/internal/retry"
	"github.com/haasonsaas/splitserve/internal/store"
	"github.com/haasonsaas/splitserve/internal/web"
)

// =============================================================================
// Serve Command Handler
// =============================================================================

// runServe implements the serve command logic.
// It handles configuration loading, component wiring, and graceful shutdown.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:          level,
		Format:         cfg.Logging.Format,
		AddSource:      cfg.Logging.AddSource,
		RedactPatterns: cfg.Logging.RedactPatterns,
	})
	slog.SetDefault(logger.Slog())

	slog.Info("starting splitserve",
		"version", version,
		"commit", commit,
		"config", configPath,
		"domain", cfg.Domain,
	)

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}

	// Create a context that cancels on shutdown signals.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := rt.start(ctx)

	slog.Info("splitserve started",
		"http_addr", rt.apiServer.Addr,
		"metrics_addr", rt.metricsServer.Addr,
	)

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	slog.Info("shutdown signal received, initiating graceful shutdown")

	// Create a timeout context for graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := rt.stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("splitserve stopped gracefully")
	return nil
}

// runtime holds the assembled server components so start and stop can walk
// them in order.
type runtime struct {
	cfg           *config.Config
	apiServer     *http.Server
	metricsServer *http.Server
	janitor       *janitor.Janitor
	local         *provider.Local
	store         *store.SQLite
	tracerStop    func(context.Context) error
	unsubscribe   func()
}

// buildRuntime wires the configuration into running components: provider
// sources, the decision session, the HTTP API, metrics, tracing, optional
// assignment log and janitor.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	metrics := observability.NewMetrics()

	tracer, tracerStop := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "splitserve",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	rt.tracerStop = tracerStop

	var diagnostics *observability.DiagnosticBuffer
	if cfg.Diagnostics.Enabled {
		observability.SetDiagnosticsEnabled(true)
		diagnostics = observability.NewDiagnosticBuffer(cfg.Diagnostics.BufferSize)
		rt.unsubscribe = observability.OnDiagnosticEvent(diagnostics.Record)
	}

	var assignmentLog store.Store
	if cfg.Store.Enabled {
		sqlite, err := store.New(store.Config{Path: cfg.Store.Path})
		if err != nil {
			return nil, fmt.Errorf("open assignment log: %w", err)
		}
		rt.store = sqlite
		assignmentLog = sqlite
	}

	source, client, local, err := buildSource(cfg, metrics)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.local = local

	session, err := experiment.NewSession(experiment.SessionConfig{
		Domain: cfg.Domain,
		Source: source,
	})
	if err != nil {
		rt.close()
		return nil, err
	}

	var authService *auth.Service
	if cfg.Auth.Enabled {
		authService = auth.NewService(auth.Config{
			APIKeys:     cfg.Auth.APIKeys,
			JWTSecret:   cfg.Auth.JWTSecret,
			TokenExpiry: cfg.Auth.TokenExpiry.Std(),
		})
	}

	webCfg := &web.Config{
		Session:     session,
		Source:      source,
		Store:       assignmentLog,
		AuthService: authService,
		Metrics:     metrics,
		Diagnostics: diagnostics,
		BasePath:    cfg.Web.BasePath,
		AllowForce:  cfg.Web.AllowForce,
		Version:     version,
		Logger:      slog.Default().With("component", "web"),
	}
	if client != nil {
		webCfg.Cache = client
	}
	if cfg.Tracing.Endpoint != "" {
		webCfg.Tracer = tracer
	}

	handler, err := web.NewHandler(webCfg)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("build api handler: %w", err)
	}

	rt.apiServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      handler.Mount(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	rt.metricsServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	if cfg.Janitor.Enabled {
		janCfg := janitor.Config{
			CacheSchedule: cfg.Janitor.CacheSchedule,
			StoreSchedule: cfg.Janitor.StoreSchedule,
			Retention:     cfg.Store.Retention.Std(),
		}
		if client != nil {
			janCfg.Cache = client
		}
		if assignmentLog != nil {
			janCfg.Store = assignmentLog
		}
		jan, err := janitor.New(janCfg, janitor.WithMetrics(metrics))
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("janitor: %w", err)
		}
		rt.janitor = jan
	}

	return rt, nil
}

// buildSource assembles the experiment source chain from the provider
// configuration: a remote client, a local file, or the remote with the file
// as fallback. Client and local are nil when their half is not configured.
func buildSource(cfg *config.Config, metrics *observability.Metrics) (experiment.Source, *provider.Client, *provider.Local, error) {
	var (
		source experiment.Source
		client *provider.Client
		local  *provider.Local
	)

	if cfg.Provider.Endpoint != "" {
		retryCfg := retry.DefaultConfig()
		retryCfg.MaxAttempts = cfg.Provider.Retry.MaxAttempts
		retryCfg.InitialDelay = cfg.Provider.Retry.InitialDelay.Std()
		retryCfg.MaxDelay = cfg.Provider.Retry.MaxDelay.Std()

		opts := []provider.Option{
			provider.WithHTTPClient(&http.Client{Timeout: cfg.Provider.Timeout.Std()}),
			provider.WithRetry(retryCfg),
			provider.WithCooldown(cfg.Provider.Cooldown.Std()),
			provider.WithMetrics(metrics),
		}
		if cfg.Provider.CacheDir != "" {
			opts = append(opts, provider.WithCache(cfg.Provider.CacheDir, cfg.Provider.CacheTTL.Std()))
		}
		client = provider.New(cfg.Provider.Endpoint, opts...)
		source = client
	}

	if cfg.Provider.File != "" {
		var err error
		local, err = provider.NewLocal(cfg.Provider.File)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load experiment file: %w", err)
		}
		if source != nil {
			source = provider.NewFallback(source, local)
		} else {
			source = local
		}
	}

	return source, client, local, nil
}

// start launches the HTTP servers and background components. Errors from the
// servers arrive on the returned channel.
func (rt *runtime) start(ctx context.Context) <-chan error {
	errCh := make(chan error, 2)

	go func() {
		if err := rt.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		if err := rt.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	if rt.local != nil && rt.cfg.Provider.Watch {
		if err := rt.local.StartWatching(ctx); err != nil {
			slog.Warn("experiment file watch failed to start", "error", err)
		}
	}
	if err := rt.janitor.Start(ctx); err != nil {
		slog.Warn("janitor failed to start", "error", err)
	}

	return errCh
}

// stop shuts the components down in reverse order of start. All components
// are attempted even when an earlier one fails.
func (rt *runtime) stop(ctx context.Context) error {
	var errs []error

	if rt.apiServer != nil {
		if err := rt.apiServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
	}
	if rt.metricsServer != nil {
		if err := rt.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if err := rt.janitor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("janitor stop: %w", err))
	}
	rt.close()
	if rt.tracerStop != nil {
		if err := rt.tracerStop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

// close releases resources that need no context: the file watcher, the
// assignment log and the diagnostics subscription. Safe to call twice.
func (rt *runtime) close() {
	if rt.local != nil {
		if err := rt.local.Close(); err != nil {
			slog.Warn("closing experiment file watcher failed", "error", err)
		}
		rt.local = nil
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			slog.Warn("closing assignment log failed", "error", err)
		}
		rt.store = nil
	}
	if rt.unsubscribe != nil {
		rt.unsubscribe()
		rt.unsubscribe = nil
	}
}
