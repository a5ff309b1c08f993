package provider

import (
	"context"
	"errors"
	"log/slog"

	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/pkg/models"
)

// Fallback chains two sources: when the primary cannot serve an experiment,
// the secondary is consulted. A typical pairing is a remote Client backed by
// a Local file of pinned definitions, so decisions keep flowing through a
// provider outage.
//
// An ErrExperimentRejected from the primary is authoritative and is never
// masked by the secondary.
type Fallback struct {
	primary   experiment.Source
	secondary experiment.Source
	logger    *slog.Logger
}

var _ experiment.Source = (*Fallback)(nil)

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithFallbackLogger sets the logger.
func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(f *Fallback) {
		f.logger = logger
	}
}

// NewFallback creates a source that tries primary first and secondary on
// failure.
func NewFallback(primary, secondary experiment.Source, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    slog.Default().With("component", "provider.fallback"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Variations returns records from the primary source, falling back to the
// secondary when the primary fails. When both fail, the primary's error is
// returned since it describes the authoritative source.
func (f *Fallback) Variations(ctx context.Context, id models.ExperimentID) ([]models.VariationRecord, error) {
	records, err := f.primary.Variations(ctx, id)
	if err == nil {
		return records, nil
	}
	if errors.Is(err, ErrExperimentRejected) {
		return nil, err
	}

	fallbackRecords, fallbackErr := f.secondary.Variations(ctx, id)
	if fallbackErr != nil {
		f.logger.Warn("fallback source failed too",
			"experiment_id", id,
			"primary_error", err,
			"fallback_error", fallbackErr)
		return nil, err
	}

	f.logger.Info("serving experiment from fallback source",
		"experiment_id", id,
		"primary_error", err)
	return fallbackRecords, nil
}
