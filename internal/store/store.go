// Package store persists served variation decisions for audit and
// reporting. Decisions keep flowing if the store is down; recording is
// best-effort from the caller's point of view.
package store

import (
	"context"
	"time"

	"github.com/haasonsaas/splitserve/pkg/models"
)

// Store records assignments and answers aggregate queries over them.
type Store interface {
	// RecordAssignment appends one decision to the log.
	RecordAssignment(ctx context.Context, assignment models.Assignment) error

	// Stats aggregates recorded assignments for an experiment in
	// [since, until).
	Stats(ctx context.Context, experimentID models.ExperimentID, since, until time.Time) (models.ExperimentStats, error)

	// PurgeBefore deletes assignments decided before cutoff and returns
	// how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying database.
	Close() error
}
