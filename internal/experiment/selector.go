// Package experiment implements variation selection: the weighted draw over
// an experiment's variation records and the session logic that makes each
// visitor's first decision sticky via the experiment cookies.
package experiment

import (
	"github.com/haasonsaas/splitserve/pkg/models"
)

// Select walks the variation records in order, treating each enabled record's
// weight as a bucket on the number line, and returns the variation whose
// bucket contains draw. Disabled records are skipped without consuming any of
// the draw. A record with no ID claims its bucket for the exclusion group.
// When draw lands beyond the last bucket the visitor sees the original page.
//
// The draw is expected to be uniform in [0, 1) but the walk itself makes no
// assumption about it; a draw at or above the total weight simply falls
// through to the original variation.
func Select(records []models.VariationRecord, draw float64) models.ChosenVariation {
	remaining := draw
	for _, rec := range records {
		if rec.Disabled {
			continue
		}
		if remaining < rec.Weight {
			if rec.Excluded() {
				return models.NotParticipating
			}
			return models.ChosenVariation(*rec.ID)
		}
		remaining -= rec.Weight
	}
	return models.OriginalVariation
}
