package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/haasonsaas/splitserve/internal/cache"
	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/internal/observability"
	"github.com/haasonsaas/splitserve/internal/retry"
	"github.com/haasonsaas/splitserve/pkg/models"
)

// DefaultEndpoint is the canonical serving-script endpoint of the tracking
// system this service interoperates with.
const DefaultEndpoint = "https://www.google-analytics.com/cx/api.js"

// maxScriptBytes bounds how much of the provider script is read per fetch.
const maxScriptBytes = 1 << 20

// Client fetches variation records from the experiment provider's script
// endpoint. Fetched records are cached on disk per experiment; concurrent
// requests for the same experiment collapse into a single fetch, and an
// experiment whose fetch just failed is not retried until its cooldown ends.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      *fileCache
	cooldown   *cache.Cooldown
	retry      retry.Config
	flight     singleflight.Group
	logger     *slog.Logger
	metrics    *observability.Metrics
}

var _ experiment.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCache enables the disk cache under dir with the given TTL.
func WithCache(dir string, ttl time.Duration) Option {
	return func(c *Client) {
		if dir != "" {
			c.cache = newFileCache(dir, ttl)
		}
	}
}

// WithRetry sets the retry policy for fetches.
func WithRetry(config retry.Config) Option {
	return func(c *Client) {
		c.retry = config
	}
}

// WithCooldown sets how long a failed experiment fetch is fenced off before
// the provider is asked again.
func WithCooldown(ttl time.Duration) Option {
	return func(c *Client) {
		c.cooldown = cache.NewCooldown(cache.CooldownOptions{TTL: ttl, MaxSize: 1024})
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics wires fetch and cache metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client for the given provider endpoint. An empty endpoint
// selects DefaultEndpoint.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cooldown: cache.NewCooldown(cache.CooldownOptions{TTL: 30 * time.Second, MaxSize: 1024}),
		retry:    retry.DefaultConfig(),
		logger:   slog.Default().With("component", "provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured provider endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Variations returns the variation records for an experiment, from the disk
// cache when fresh and from the provider otherwise.
func (c *Client) Variations(ctx context.Context, id models.ExperimentID) ([]models.VariationRecord, error) {
	key := string(id)

	if c.cache != nil {
		if records, ok := c.cache.get(key); ok {
			if c.metrics != nil {
				c.metrics.RecordProviderCache(true)
			}
			return records, nil
		}
		if c.metrics != nil {
			c.metrics.RecordProviderCache(false)
		}
	}

	value, err, shared := c.flight.Do(key, func() (any, error) {
		if c.cooldown.Active(key) {
			observability.EmitProviderFetch(&observability.ProviderFetchEvent{
				ExperimentID: key,
				Outcome:      "cooldown",
			})
			return nil, fmt.Errorf("%w: %s is cooling down after a recent failure", ErrUnavailable, key)
		}

		records, err := c.fetch(ctx, key)
		if err != nil {
			c.cooldown.Set(key)
			return nil, err
		}

		if c.cache != nil {
			if cacheErr := c.cache.put(key, records); cacheErr != nil {
				c.logger.Warn("cache write failed", "experiment_id", key, "error", cacheErr)
			}
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("fetch shared with concurrent caller", "experiment_id", key)
	}
	return value.([]models.VariationRecord), nil
}

// fetch performs the HTTP round trips for one experiment.
func (c *Client) fetch(ctx context.Context, experimentID string) ([]models.VariationRecord, error) {
	fetchURL, err := c.buildURL(experimentID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, result := retry.DoWithValue(ctx, c.retry, func() ([]models.VariationRecord, error) {
		return c.fetchOnce(ctx, fetchURL, experimentID)
	})
	status := "success"
	if result.Err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordProviderFetch(status, time.Since(start).Seconds())
	}
	event := &observability.ProviderFetchEvent{
		ExperimentID: experimentID,
		Outcome:      status,
		Attempts:     result.Attempts,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	if result.Err != nil {
		event.Error = result.Err.Error()
	}
	observability.EmitProviderFetch(event)

	if result.Err != nil {
		c.logger.Warn("provider fetch failed",
			"experiment_id", experimentID,
			"attempts", result.Attempts,
			"error", result.Err)
		return nil, result.Err
	}

	c.logger.Info("fetched experiment",
		"experiment_id", experimentID,
		"variations", len(records),
		"attempts", result.Attempts)
	return records, nil
}

func (c *Client) buildURL(experimentID string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid provider endpoint: %w", err)
	}
	q := u.Query()
	q.Set("experiment", experimentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetchOnce(ctx context.Context, fetchURL, experimentID string) ([]models.VariationRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/javascript, text/javascript")
	req.Header.Set("User-Agent", "splitserve/1.0")

	c.logger.Debug("fetching experiment payload", "url", fetchURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}

	script, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	p, err := extractPayload(script)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	if msg, ok := p.Errors[experimentID]; ok {
		return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrExperimentRejected, msg))
	}
	exp, ok := p.Experiments[experimentID]
	if !ok {
		return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrExperimentNotFound, experimentID))
	}
	return exp.Variations, nil
}

// PurgeCache deletes disk cache entries and returns how many were removed.
func (c *Client) PurgeCache(expiredOnly bool) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	removed, err := c.cache.purge(expiredOnly)
	if err == nil {
		observability.EmitCachePurge(&observability.CachePurgeEvent{
			ExpiredOnly: expiredOnly,
			Removed:     removed,
		})
	}
	return removed, err
}

// Cache reports the state of the disk cache. The zero status with an empty
// Dir means caching is disabled.
func (c *Client) Cache() (CacheStatus, error) {
	if c.cache == nil {
		return CacheStatus{}, nil
	}
	return c.cache.status()
}
