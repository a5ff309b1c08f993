package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/haasonsaas/splitserve/internal/config"
	"github.com/haasonsaas/splitserve/pkg/models"
)

// Response payloads decoded from the operator API. These mirror the shapes
// the web package serves.

type experimentList struct {
	Experiments []string `json:"experiments"`
	Total       int      `json:"total"`
}

type experimentDetail struct {
	ExperimentID string                   `json:"experiment_id"`
	Variations   []models.VariationRecord `json:"variations"`
}

type cacheDetail struct {
	Dir     string `json:"dir"`
	Entries int    `json:"entries"`
	Expired int    `json:"expired"`
	Bytes   int64  `json:"bytes"`
}

type purgeResult struct {
	Removed     int  `json:"removed"`
	ExpiredOnly bool `json:"expired_only"`
}

type apiClient struct {
	baseURL    string
	token      string
	apiKey     string
	httpClient *http.Client
}

// newAPIClient creates a client for the operator API. Empty credentials fall
// back to the SPLITSERVE_TOKEN and SPLITSERVE_API_KEY environment variables.
func newAPIClient(baseURL, token, apiKey string) *apiClient {
	if token == "" {
		token = strings.TrimSpace(os.Getenv("SPLITSERVE_TOKEN"))
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("SPLITSERVE_API_KEY"))
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(path, resp)
	}

	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *apiClient) postJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(path, resp)
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *apiClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func apiError(path string, resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		return fmt.Errorf("request %s failed: %s (read body: %w)", path, resp.Status, readErr)
	}
	if len(body) > 0 {
		return fmt.Errorf("request %s failed: %s (%s)", path, resp.Status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("request %s failed: %s", path, resp.Status)
}

// resolveHTTPBaseURL works out where the running server is. An explicit
// --server wins; otherwise the address is assembled from the config file,
// including any base path the API is mounted under.
func resolveHTTPBaseURL(configPath, serverAddr string) (string, error) {
	addr := strings.TrimSpace(serverAddr)
	if addr == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		host := cfg.Server.Host
		if strings.TrimSpace(host) == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		addr = fmt.Sprintf("%s:%d", host, cfg.Server.HTTPPort)
		if basePath := strings.Trim(cfg.Web.BasePath, "/"); basePath != "" {
			addr += "/" + basePath
		}
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/"), nil
	}
	return "http://" + strings.TrimRight(addr, "/"), nil
}
