package web

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/internal/provider"
	"github.com/haasonsaas/splitserve/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func intPtr(i int) *int { return &i }

// fakeSource serves one fixed variation table for every experiment and can
// enumerate experiment ids.
type fakeSource struct {
	records []models.VariationRecord
	err     error
	ids     []string
	calls   int
}

func (s *fakeSource) Variations(_ context.Context, _ models.ExperimentID) ([]models.VariationRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *fakeSource) Experiments() []string {
	return s.ids
}

// bareSource implements only Variations, not ExperimentLister.
type bareSource struct {
	records []models.VariationRecord
}

func (s *bareSource) Variations(_ context.Context, _ models.ExperimentID) ([]models.VariationRecord, error) {
	return s.records, nil
}

// fakeStore collects recorded assignments in memory.
type fakeStore struct {
	mu          sync.Mutex
	assignments []models.Assignment
	recordErr   error
	stats       models.ExperimentStats
	statsErr    error
}

func (s *fakeStore) RecordAssignment(_ context.Context, assignment models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.assignments = append(s.assignments, assignment)
	return nil
}

func (s *fakeStore) Stats(_ context.Context, experimentID models.ExperimentID, since, until time.Time) (models.ExperimentStats, error) {
	if s.statsErr != nil {
		return models.ExperimentStats{}, s.statsErr
	}
	stats := s.stats
	stats.ExperimentID = experimentID
	stats.Since = since
	stats.Until = until
	return stats, nil
}

func (s *fakeStore) PurgeBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) recorded() []models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, len(s.assignments))
	copy(out, s.assignments)
	return out
}

// fakeCache implements CacheManager.
type fakeCache struct {
	status      provider.CacheStatus
	removed     int
	purgeErr    error
	expiredOnly bool
}

func (c *fakeCache) PurgeCache(expiredOnly bool) (int, error) {
	c.expiredOnly = expiredOnly
	if c.purgeErr != nil {
		return 0, c.purgeErr
	}
	return c.removed, nil
}

func (c *fakeCache) Cache() (provider.CacheStatus, error) {
	return c.status, nil
}

// newTestHandler builds a Handler over the given source with a session
// scoped to example.com. The mutate hook adjusts the config before
// construction.
func newTestHandler(t *testing.T, source experiment.Source, mutate func(*Config)) *Handler {
	t.Helper()

	session, err := experiment.NewSession(experiment.SessionConfig{
		Domain: "example.com",
		Source: source,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	cfg := &Config{
		Session: session,
		Source:  source,
		Logger:  testLogger(),
	}
	if mutate != nil {
		mutate(cfg)
	}

	h, err := NewHandler(cfg)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h
}

// singleVariation is the default experiment table: one enabled variation
// with the full weight, so every draw lands on variation 1.
func singleVariation() []models.VariationRecord {
	return []models.VariationRecord{{ID: intPtr(1), Weight: 1.0}}
}
