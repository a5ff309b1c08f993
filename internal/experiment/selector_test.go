package experiment

import (
	"testing"

	"github.com/haasonsaas/splitserve/pkg/models"
)

func intp(v int) *int { return &v }

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		records  []models.VariationRecord
		draw     float64
		expected models.ChosenVariation
	}{
		{
			name: "draw lands in second bucket past exclusion",
			records: []models.VariationRecord{
				{ID: nil, Weight: 0.5},
				{ID: intp(5), Weight: 0.5},
			},
			draw:     0.7,
			expected: 5,
		},
		{
			name: "draw lands in exclusion bucket",
			records: []models.VariationRecord{
				{ID: nil, Weight: 0.5},
				{ID: intp(5), Weight: 0.5},
			},
			draw:     0.3,
			expected: models.NotParticipating,
		},
		{
			name: "first bucket wins at zero",
			records: []models.VariationRecord{
				{ID: intp(1), Weight: 0.25},
				{ID: intp(2), Weight: 0.75},
			},
			draw:     0,
			expected: 1,
		},
		{
			name: "boundary draw moves to the next bucket",
			records: []models.VariationRecord{
				{ID: intp(1), Weight: 0.25},
				{ID: intp(2), Weight: 0.75},
			},
			draw:     0.25,
			expected: 2,
		},
		{
			name: "disabled record consumes no weight",
			records: []models.VariationRecord{
				{ID: intp(1), Weight: 0.5, Disabled: true},
				{ID: intp(2), Weight: 0.5},
			},
			draw:     0.3,
			expected: 2,
		},
		{
			name: "weights below one fall through to original",
			records: []models.VariationRecord{
				{ID: intp(1), Weight: 0.2},
				{ID: intp(2), Weight: 0.2},
			},
			draw:     0.9,
			expected: models.OriginalVariation,
		},
		{
			name:     "no records falls through to original",
			records:  nil,
			draw:     0.1,
			expected: models.OriginalVariation,
		},
		{
			name: "all disabled falls through to original",
			records: []models.VariationRecord{
				{ID: intp(1), Weight: 1, Disabled: true},
			},
			draw:     0.1,
			expected: models.OriginalVariation,
		},
		{
			name: "zero weight record is passed over",
			records: []models.VariationRecord{
				{ID: intp(1), Weight: 0},
				{ID: intp(2), Weight: 1},
			},
			draw:     0,
			expected: 2,
		},
		{
			name: "explicit original bucket",
			records: []models.VariationRecord{
				{ID: intp(0), Weight: 0.5},
				{ID: intp(1), Weight: 0.5},
			},
			draw:     0.2,
			expected: models.OriginalVariation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Select(tt.records, tt.draw); got != tt.expected {
				t.Errorf("Select() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSelect_CumulativeWalk(t *testing.T) {
	records := []models.VariationRecord{
		{ID: intp(1), Weight: 0.25},
		{ID: intp(2), Weight: 0.25},
		{ID: intp(3), Weight: 0.25},
		{ID: intp(4), Weight: 0.25},
	}
	draws := map[float64]models.ChosenVariation{
		0.0:   1,
		0.24:  1,
		0.25:  2,
		0.49:  2,
		0.5:   3,
		0.74:  3,
		0.75:  4,
		0.999: 4,
		1.0:   models.OriginalVariation,
	}
	for draw, want := range draws {
		if got := Select(records, draw); got != want {
			t.Errorf("Select(draw=%v) = %v, want %v", draw, got, want)
		}
	}
}
