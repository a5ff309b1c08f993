package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/haasonsaas/splitserve/internal/observability"
	"github.com/haasonsaas/splitserve/pkg/models"
)

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type decideResponse struct {
	ExperimentID  string `json:"experiment_id"`
	Variation     int    `json:"variation"`
	Participating bool   `json:"participating"`
	Fresh         bool   `json:"fresh"`
	RequestID     string `json:"request_id,omitempty"`
}

type experimentListResponse struct {
	Experiments []string `json:"experiments"`
	Total       int      `json:"total"`
}

type experimentResponse struct {
	ExperimentID string                   `json:"experiment_id"`
	Variations   []models.VariationRecord `json:"variations"`
}

type purgeResponse struct {
	Removed     int  `json:"removed"`
	ExpiredOnly bool `json:"expired_only"`
}

type diagnosticsResponse struct {
	Enabled bool                                   `json:"enabled"`
	Count   int                                    `json:"count"`
	Events  []observability.DiagnosticEventPayload `json:"events"`
}

// handleHealthz reports liveness.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, healthResponse{
		Status:        "ok",
		Version:       h.config.Version,
		UptimeSeconds: int64(time.Since(h.config.ServerStartTime).Seconds()),
	})
}

// jsonResponse writes a JSON response.
func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.config.Logger.Error("json encode error", "error", err)
	}
}

// jsonError writes a JSON error response.
func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
