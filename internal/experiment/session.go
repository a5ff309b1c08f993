package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/splitserve/internal/cookie"
	"github.com/haasonsaas/splitserve/pkg/models"
)

var (
	// ErrNoDomain is returned when a decision is requested but no domain
	// name is configured. The domain cannot be defaulted; every cookie is
	// keyed by its hash.
	ErrNoDomain = errors.New("domain not configured")

	// ErrNoExperiment is returned when the experiment ID is empty.
	ErrNoExperiment = errors.New("experiment id required")
)

// Source supplies the ordered variation records for an experiment.
type Source interface {
	Variations(ctx context.Context, id models.ExperimentID) ([]models.VariationRecord, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, id models.ExperimentID) ([]models.VariationRecord, error)

// Variations calls f.
func (f SourceFunc) Variations(ctx context.Context, id models.ExperimentID) ([]models.VariationRecord, error) {
	return f(ctx, id)
}

// Decision is the outcome of ChooseVariation: the variation plus the cookie
// values that make it stick. Fresh reports whether this call drew the
// variation; when false the cookies are the caller's prior values unchanged
// and must not be rewritten.
type Decision struct {
	Variation        models.ChosenVariation
	AssignmentCookie string
	TimestampCookie  string
	Fresh            bool
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Domain is the site the experiment cookies are scoped to.
	Domain string

	// Source supplies variation records on a fresh decision.
	Source Source

	// Logger is optional; decisions are logged at debug level.
	Logger *slog.Logger
}

// Session makes sticky variation decisions for one configured domain.
type Session struct {
	domain string
	source Source
	logger *slog.Logger
}

// NewSession creates a Session. The source is required; the domain is
// checked per decision so a session built from an incomplete configuration
// fails with ErrNoDomain instead of at startup.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("experiment source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		domain: cfg.Domain,
		source: cfg.Source,
		logger: logger,
	}, nil
}

// Domain returns the configured cookie domain.
func (s *Session) Domain() string {
	return s.domain
}

// ChooseVariation returns the variation for one visitor request.
//
// When the prior assignment cookie already decodes to a nonzero variation for
// the experiment, that value is replayed untouched. Otherwise a fresh draw is
// made over the source's variation records and both cookie values are
// rewritten: the assignment cookie binds the experiment to the chosen
// variation and the timestamp cookie records now. A prior value that decodes
// to zero counts as undecided and is drawn again.
//
// The draw must be uniform in [0, 1); the caller owns randomness so replays
// and tests stay deterministic.
func (s *Session) ChooseVariation(ctx context.Context, id models.ExperimentID, priorAssignment, priorTimestamp string, draw float64, now time.Time) (Decision, error) {
	if s.domain == "" {
		return Decision{}, ErrNoDomain
	}
	if id == "" {
		return Decision{}, ErrNoExperiment
	}

	if prior, ok := cookie.DecodeAssignment(priorAssignment, string(id)); ok && prior != 0 {
		return Decision{
			Variation:        models.ChosenVariation(prior),
			AssignmentCookie: priorAssignment,
			TimestampCookie:  priorTimestamp,
		}, nil
	}

	records, err := s.source.Variations(ctx, id)
	if err != nil {
		return Decision{}, fmt.Errorf("variations for %s: %w", id, err)
	}

	chosen := Select(records, draw)
	s.logger.Debug("variation drawn",
		"experiment_id", id,
		"variation", chosen,
		"draw", draw,
	)

	return Decision{
		Variation:        chosen,
		AssignmentCookie: cookie.UpdateAssignment(priorAssignment, string(id), int(chosen), s.domain),
		TimestampCookie:  cookie.UpdateTimestamp(priorTimestamp, string(id), now.Unix(), s.domain),
		Fresh:            true,
	}, nil
}

// Force returns a Decision that pins the experiment to a specific variation
// regardless of the prior cookie state. Used by the force query parameter and
// the CLI; it rewrites both cookies the same way a fresh draw would.
func (s *Session) Force(id models.ExperimentID, priorAssignment, priorTimestamp string, variation models.ChosenVariation, now time.Time) (Decision, error) {
	if s.domain == "" {
		return Decision{}, ErrNoDomain
	}
	if id == "" {
		return Decision{}, ErrNoExperiment
	}
	return Decision{
		Variation:        variation,
		AssignmentCookie: cookie.UpdateAssignment(priorAssignment, string(id), int(variation), s.domain),
		TimestampCookie:  cookie.UpdateTimestamp(priorTimestamp, string(id), now.Unix(), s.domain),
		Fresh:            true,
	}, nil
}
