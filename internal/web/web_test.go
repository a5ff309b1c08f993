package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/splitserve/internal/auth"
)

func TestNewHandlerRequiresSession(t *testing.T) {
	if _, err := NewHandler(nil); err == nil {
		t.Error("NewHandler(nil) expected error")
	}
	if _, err := NewHandler(&Config{}); err == nil {
		t.Error("NewHandler without session expected error")
	}
}

func TestHandleHealthz(t *testing.T) {
	h := newTestHandler(t, &fakeSource{records: singleVariation()}, func(cfg *Config) {
		cfg.Version = "1.2.3"
		cfg.ServerStartTime = time.Now().Add(-time.Minute)
	})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp.Version)
	}
	if resp.UptimeSeconds < 60 {
		t.Errorf("uptime_seconds = %d, want >= 60", resp.UptimeSeconds)
	}
}

func TestServeHTTPStripsBasePath(t *testing.T) {
	for _, basePath := range []string{"/split", "/split/"} {
		h := newTestHandler(t, &fakeSource{records: singleVariation()}, func(cfg *Config) {
			cfg.BasePath = basePath
		})

		req := httptest.NewRequest("GET", "/split/healthz", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("base path %q: status = %d, want %d", basePath, rec.Code, http.StatusOK)
		}
	}
}

func TestMountSetsRequestID(t *testing.T) {
	h := newTestHandler(t, &fakeSource{records: singleVariation()}, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Mount().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestOperatorRoutesRequireAuth(t *testing.T) {
	source := &fakeSource{records: singleVariation(), ids: []string{"myExp"}}
	h := newTestHandler(t, source, func(cfg *Config) {
		cfg.AuthService = auth.NewService(auth.Config{APIKeys: []string{"secret-key"}})
		cfg.Cache = &fakeCache{}
		cfg.Store = &fakeStore{}
	})

	operatorPaths := []struct {
		method string
		path   string
	}{
		{"GET", "/v1/experiments"},
		{"GET", "/v1/experiments/myExp"},
		{"GET", "/v1/experiments/myExp/stats"},
		{"GET", "/v1/admin/cache"},
		{"POST", "/v1/admin/cache/purge"},
		{"GET", "/v1/admin/diagnostics"},
		{"GET", "/v1/admin/config/schema"},
	}

	for _, tt := range operatorPaths {
		t.Run(tt.path+" without key", func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}

	t.Run("experiments with key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/experiments", nil)
		req.Header.Set("X-API-Key", "secret-key")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("decide stays public", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/decide/myExp", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("healthz stays public", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}
