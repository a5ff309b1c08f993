package web

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/splitserve/internal/cookie"
	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/internal/observability"
	"github.com/haasonsaas/splitserve/internal/provider"
	"github.com/haasonsaas/splitserve/pkg/models"
)

// handleDecide handles GET /v1/decide/{experimentID}.
//
// The visitor's prior cookie state rides in on __utmx/__utmxx; a sticky
// replay answers from the cookie alone, a fresh draw consults the source
// and sets both cookies on the way out.
func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/decide/"), "/")
	if id == "" || strings.Contains(id, "/") {
		h.jsonError(w, "Experiment id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	priorAssignment := cookie.ReadAssignment(r)
	priorTimestamp := cookie.ReadTimestamp(r)
	now := time.Now()

	var (
		decision experiment.Decision
		source   models.AssignmentSource
		err      error
	)
	if force := r.URL.Query().Get("force"); force != "" && h.config.AllowForce {
		variation, parseErr := strconv.Atoi(force)
		if parseErr != nil {
			h.jsonError(w, "Invalid force value", http.StatusBadRequest)
			return
		}
		decision, err = h.config.Session.Force(models.ExperimentID(id), priorAssignment, priorTimestamp, models.ChosenVariation(variation), now)
		source = models.SourceForced
	} else {
		// #nosec G404 -- variation assignment is not security sensitive
		draw := rand.Float64()
		decision, err = h.config.Session.ChooseVariation(ctx, models.ExperimentID(id), priorAssignment, priorTimestamp, draw, now)
		source = models.SourceDraw
	}
	if err != nil {
		h.decideError(w, id, err)
		return
	}
	if !decision.Fresh {
		source = models.SourceCookie
	}

	if decision.Fresh {
		cookie.Write(w, h.config.Session.Domain(), decision.AssignmentCookie, decision.TimestampCookie, now)
		h.recordAssignment(ctx, id, decision, source, now)
	}

	if h.config.Metrics != nil {
		h.config.Metrics.RecordDecision(id, string(source), decision.Variation.String())
	}
	requestID := observability.GetRequestID(ctx)
	observability.EmitDecision(&observability.DecisionEvent{
		ExperimentID: id,
		Variation:    int(decision.Variation),
		Source:       string(source),
		Fresh:        decision.Fresh,
		RequestID:    requestID,
		DurationMs:   time.Since(now).Milliseconds(),
	})

	h.jsonResponse(w, decideResponse{
		ExperimentID:  id,
		Variation:     int(decision.Variation),
		Participating: decision.Variation.Participating(),
		Fresh:         decision.Fresh,
		RequestID:     requestID,
	})
}

// recordAssignment logs a fresh decision to the assignment store. Failures
// are reported but never fail the request; decisions keep flowing when the
// store is down.
func (h *Handler) recordAssignment(ctx context.Context, id string, decision experiment.Decision, source models.AssignmentSource, now time.Time) {
	if h.config.Store == nil {
		return
	}
	err := h.config.Store.RecordAssignment(ctx, models.Assignment{
		ExperimentID: models.ExperimentID(id),
		Variation:    decision.Variation,
		Source:       source,
		RequestID:    observability.GetRequestID(ctx),
		DomainHash:   cookie.DomainHash(h.config.Session.Domain()),
		DecidedAt:    now,
	})
	if h.config.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		h.config.Metrics.RecordStoreWrite(status)
	}
	if err != nil {
		h.config.Logger.Warn("assignment record failed", "experiment_id", id, "error", err)
	}
}

func (h *Handler) decideError(w http.ResponseWriter, id string, err error) {
	if h.config.Metrics != nil {
		h.config.Metrics.RecordDecision(id, "error", "")
	}
	switch {
	case errors.Is(err, experiment.ErrNoExperiment):
		h.jsonError(w, "Experiment id required", http.StatusBadRequest)
	case errors.Is(err, provider.ErrExperimentNotFound):
		h.jsonError(w, "Experiment not found", http.StatusNotFound)
	case errors.Is(err, provider.ErrExperimentRejected):
		h.jsonError(w, "Experiment is stopped", http.StatusGone)
	case errors.Is(err, experiment.ErrNoDomain):
		h.config.Logger.Error("decide failed", "experiment_id", id, "error", err)
		h.jsonError(w, "Service misconfigured", http.StatusInternalServerError)
	default:
		h.config.Logger.Error("decide failed", "experiment_id", id, "error", err)
		h.jsonError(w, "Experiment source unavailable", http.StatusBadGateway)
	}
}
