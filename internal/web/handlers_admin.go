package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/splitserve/internal/config"
	"github.com/haasonsaas/splitserve/internal/observability"
	"github.com/haasonsaas/splitserve/internal/provider"
	"github.com/haasonsaas/splitserve/pkg/models"
)

// handleExperimentList handles GET /v1/experiments.
func (h *Handler) handleExperimentList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	lister, ok := h.config.Source.(ExperimentLister)
	if !ok {
		h.jsonError(w, "Source does not support listing", http.StatusNotImplemented)
		return
	}
	ids := lister.Experiments()
	h.jsonResponse(w, experimentListResponse{Experiments: ids, Total: len(ids)})
}

// handleExperiments dispatches GET /v1/experiments/{id} and
// GET /v1/experiments/{id}/stats.
func (h *Handler) handleExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/experiments/"), "/")
	switch {
	case rest == "":
		h.handleExperimentList(w, r)
	case strings.HasSuffix(rest, "/stats"):
		id := strings.Trim(strings.TrimSuffix(rest, "/stats"), "/")
		h.handleExperimentStats(w, r, id)
	case !strings.Contains(rest, "/"):
		h.handleExperimentShow(w, r, rest)
	default:
		h.jsonError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) handleExperimentShow(w http.ResponseWriter, r *http.Request, id string) {
	if h.config.Source == nil {
		h.jsonError(w, "No experiment source configured", http.StatusNotImplemented)
		return
	}
	records, err := h.config.Source.Variations(r.Context(), models.ExperimentID(id))
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrExperimentNotFound):
			h.jsonError(w, "Experiment not found", http.StatusNotFound)
		case errors.Is(err, provider.ErrExperimentRejected):
			h.jsonError(w, "Experiment is stopped", http.StatusGone)
		default:
			h.config.Logger.Error("experiment lookup failed", "experiment_id", id, "error", err)
			h.jsonError(w, "Experiment source unavailable", http.StatusBadGateway)
		}
		return
	}
	h.jsonResponse(w, experimentResponse{ExperimentID: id, Variations: records})
}

func (h *Handler) handleExperimentStats(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		h.jsonError(w, "Experiment id required", http.StatusBadRequest)
		return
	}
	if h.config.Store == nil {
		h.jsonError(w, "Assignment log disabled", http.StatusNotImplemented)
		return
	}
	period, err := parseStatsPeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	until := time.Now()
	since := until.Add(-period)
	stats, err := h.config.Store.Stats(r.Context(), models.ExperimentID(id), since, until)
	if err != nil {
		h.config.Logger.Error("stats query failed", "experiment_id", id, "error", err)
		h.jsonError(w, "Stats query failed", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, stats)
}

// parseStatsPeriod accepts "7d"-style day counts or any time.ParseDuration
// string; the default window is seven days.
func parseStatsPeriod(raw string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = "7d"
	}

	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid period %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	dur, err := time.ParseDuration(value)
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("invalid period %q", raw)
	}
	return dur, nil
}

// handleCacheStatus handles GET /v1/admin/cache.
func (h *Handler) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.config.Cache == nil {
		h.jsonError(w, "No provider cache configured", http.StatusNotImplemented)
		return
	}
	status, err := h.config.Cache.Cache()
	if err != nil {
		h.config.Logger.Error("cache status failed", "error", err)
		h.jsonError(w, "Cache status failed", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, status)
}

// handleCachePurge handles POST /v1/admin/cache/purge. With ?expired=1 only
// entries past their TTL are dropped.
func (h *Handler) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.config.Cache == nil {
		h.jsonError(w, "No provider cache configured", http.StatusNotImplemented)
		return
	}
	expired := r.URL.Query().Get("expired")
	expiredOnly := expired == "1" || expired == "true"

	removed, err := h.config.Cache.PurgeCache(expiredOnly)
	if err != nil {
		h.config.Logger.Error("cache purge failed", "error", err)
		h.jsonError(w, "Cache purge failed", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, purgeResponse{Removed: removed, ExpiredOnly: expiredOnly})
}

// handleDiagnostics handles GET /v1/admin/diagnostics.
func (h *Handler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.config.Diagnostics == nil {
		h.jsonError(w, "Diagnostics not configured", http.StatusNotImplemented)
		return
	}
	events := h.config.Diagnostics.Snapshot()
	h.jsonResponse(w, diagnosticsResponse{
		Enabled: observability.IsDiagnosticsEnabled(),
		Count:   len(events),
		Events:  events,
	})
}

// handleConfigSchema handles GET /v1/admin/config/schema.
func (h *Handler) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := config.JSONSchema()
	if err != nil {
		h.config.Logger.Error("schema generation failed", "error", err)
		h.jsonError(w, "Schema generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
