package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/splitserve/internal/cookie"
	"github.com/haasonsaas/splitserve/internal/provider"
	"github.com/haasonsaas/splitserve/pkg/models"
)

func decodeDecide(t *testing.T, rec *httptest.ResponseRecorder) decideResponse {
	t.Helper()
	var resp decideResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandleDecideFreshDraw(t *testing.T) {
	source := &fakeSource{records: singleVariation()}
	store := &fakeStore{}
	h := newTestHandler(t, source, func(cfg *Config) {
		cfg.Store = store
	})

	req := httptest.NewRequest("GET", "/v1/decide/myExp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	resp := decodeDecide(t, rec)
	if resp.ExperimentID != "myExp" {
		t.Errorf("experiment_id = %q, want %q", resp.ExperimentID, "myExp")
	}
	if resp.Variation != 1 {
		t.Errorf("variation = %d, want 1", resp.Variation)
	}
	if !resp.Fresh {
		t.Error("fresh = false, want true")
	}
	if !resp.Participating {
		t.Error("participating = false, want true")
	}

	assignment := findCookie(t, rec, cookie.AssignmentCookieName)
	if assignment == nil {
		t.Fatal("assignment cookie not set")
	}
	if assignment.Value != "60493049.myExp$0:1" {
		t.Errorf("assignment cookie = %q, want %q", assignment.Value, "60493049.myExp$0:1")
	}
	if assignment.Domain != "example.com" && assignment.Domain != ".example.com" {
		t.Errorf("assignment cookie domain = %q", assignment.Domain)
	}

	timestamp := findCookie(t, rec, cookie.TimestampCookieName)
	if timestamp == nil {
		t.Fatal("timestamp cookie not set")
	}
	if !strings.HasPrefix(timestamp.Value, "60493049.myExp$0:") {
		t.Errorf("timestamp cookie = %q, want 60493049.myExp$0: prefix", timestamp.Value)
	}
	if !strings.HasSuffix(timestamp.Value, ":8035200") {
		t.Errorf("timestamp cookie = %q, want :8035200 suffix", timestamp.Value)
	}

	recorded := store.recorded()
	if len(recorded) != 1 {
		t.Fatalf("recorded assignments = %d, want 1", len(recorded))
	}
	if recorded[0].ExperimentID != "myExp" {
		t.Errorf("recorded experiment = %q, want myExp", recorded[0].ExperimentID)
	}
	if recorded[0].Variation != 1 {
		t.Errorf("recorded variation = %d, want 1", recorded[0].Variation)
	}
	if recorded[0].Source != models.SourceDraw {
		t.Errorf("recorded source = %q, want %q", recorded[0].Source, models.SourceDraw)
	}
	if recorded[0].DomainHash != 60493049 {
		t.Errorf("recorded domain hash = %d, want 60493049", recorded[0].DomainHash)
	}
}

func TestHandleDecideReplaysPriorCookie(t *testing.T) {
	source := &fakeSource{records: singleVariation()}
	store := &fakeStore{}
	h := newTestHandler(t, source, func(cfg *Config) {
		cfg.Store = store
	})

	req := httptest.NewRequest("GET", "/v1/decide/myExp", nil)
	req.AddCookie(&http.Cookie{Name: cookie.AssignmentCookieName, Value: "60493049.myExp$0:2"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	resp := decodeDecide(t, rec)
	if resp.Variation != 2 {
		t.Errorf("variation = %d, want 2 (replayed)", resp.Variation)
	}
	if resp.Fresh {
		t.Error("fresh = true, want false for a replay")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Errorf("replay set %d cookies, want none", len(rec.Result().Cookies()))
	}
	if source.calls != 0 {
		t.Errorf("source consulted %d times on a replay, want 0", source.calls)
	}
	if len(store.recorded()) != 0 {
		t.Errorf("replay recorded %d assignments, want 0", len(store.recorded()))
	}
}

func TestHandleDecideForce(t *testing.T) {
	source := &fakeSource{records: singleVariation()}
	store := &fakeStore{}
	h := newTestHandler(t, source, func(cfg *Config) {
		cfg.Store = store
		cfg.AllowForce = true
	})

	req := httptest.NewRequest("GET", "/v1/decide/myExp?force=5", nil)
	req.AddCookie(&http.Cookie{Name: cookie.AssignmentCookieName, Value: "60493049.myExp$0:2"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	resp := decodeDecide(t, rec)
	if resp.Variation != 5 {
		t.Errorf("variation = %d, want 5 (forced over prior)", resp.Variation)
	}
	if !resp.Fresh {
		t.Error("fresh = false, want true for a forced decision")
	}

	assignment := findCookie(t, rec, cookie.AssignmentCookieName)
	if assignment == nil {
		t.Fatal("assignment cookie not set")
	}
	if assignment.Value != "60493049.myExp$0:5" {
		t.Errorf("assignment cookie = %q, want %q", assignment.Value, "60493049.myExp$0:5")
	}

	recorded := store.recorded()
	if len(recorded) != 1 {
		t.Fatalf("recorded assignments = %d, want 1", len(recorded))
	}
	if recorded[0].Source != models.SourceForced {
		t.Errorf("recorded source = %q, want %q", recorded[0].Source, models.SourceForced)
	}
}

func TestHandleDecideForceIgnoredWhenDisabled(t *testing.T) {
	source := &fakeSource{records: singleVariation()}
	store := &fakeStore{}
	h := newTestHandler(t, source, func(cfg *Config) {
		cfg.Store = store
	})

	req := httptest.NewRequest("GET", "/v1/decide/myExp?force=5", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	resp := decodeDecide(t, rec)
	if resp.Variation != 1 {
		t.Errorf("variation = %d, want 1 from the weighted draw (force ignored)", resp.Variation)
	}
	recorded := store.recorded()
	if len(recorded) != 1 || recorded[0].Source != models.SourceDraw {
		t.Errorf("recorded = %+v, want one draw assignment", recorded)
	}
}

func TestHandleDecideForceInvalid(t *testing.T) {
	h := newTestHandler(t, &fakeSource{records: singleVariation()}, func(cfg *Config) {
		cfg.AllowForce = true
	})

	req := httptest.NewRequest("GET", "/v1/decide/myExp?force=five", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleDecideErrors(t *testing.T) {
	tests := []struct {
		name       string
		sourceErr  error
		wantStatus int
	}{
		{
			name:       "unknown experiment",
			sourceErr:  fmt.Errorf("%w: myExp", provider.ErrExperimentNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "stopped experiment",
			sourceErr:  fmt.Errorf("%w: myExp", provider.ErrExperimentRejected),
			wantStatus: http.StatusGone,
		},
		{
			name:       "provider outage",
			sourceErr:  fmt.Errorf("connect: connection refused"),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &fakeSource{err: tt.sourceErr}, nil)

			req := httptest.NewRequest("GET", "/v1/decide/myExp", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body missing error message")
			}
		})
	}
}

func TestHandleDecideMissingID(t *testing.T) {
	h := newTestHandler(t, &fakeSource{records: singleVariation()}, nil)

	for _, path := range []string{"/v1/decide/", "/v1/decide/a/b"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleDecideMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &fakeSource{records: singleVariation()}, nil)

	req := httptest.NewRequest("POST", "/v1/decide/myExp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleDecideStoreFailureDoesNotFailRequest(t *testing.T) {
	store := &fakeStore{recordErr: fmt.Errorf("disk full")}
	h := newTestHandler(t, &fakeSource{records: singleVariation()}, func(cfg *Config) {
		cfg.Store = store
	})

	req := httptest.NewRequest("GET", "/v1/decide/myExp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d when only the store fails", rec.Code, http.StatusOK)
	}
	resp := decodeDecide(t, rec)
	if resp.Variation != 1 || !resp.Fresh {
		t.Errorf("response = %+v, want fresh variation 1", resp)
	}
}

func TestHandleDecideExclusionBucket(t *testing.T) {
	source := &fakeSource{records: []models.VariationRecord{{ID: nil, Weight: 1.0}}}
	h := newTestHandler(t, source, nil)

	req := httptest.NewRequest("GET", "/v1/decide/myExp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeDecide(t, rec)
	if resp.Variation != int(models.NotParticipating) {
		t.Errorf("variation = %d, want %d", resp.Variation, int(models.NotParticipating))
	}
	if resp.Participating {
		t.Error("participating = true, want false for an exclusion bucket")
	}
}
