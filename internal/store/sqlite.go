package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/haasonsaas/splitserve/pkg/models"
)

// SQLite implements Store on a local SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Config contains configuration for the SQLite store.
type Config struct {
	Path string // Path to SQLite database file
}

// New creates a new SQLite store. An empty path opens an in-memory
// database, which is useful for tests and for running without persistence.
func New(cfg Config) (*SQLite, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite locks the whole database on write; a single connection keeps
	// concurrent writers queued instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			experiment_id TEXT NOT NULL,
			variation INTEGER NOT NULL,
			source TEXT NOT NULL,
			request_id TEXT,
			domain_hash INTEGER NOT NULL DEFAULT 0,
			decided_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create assignments table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_assignments_experiment ON assignments(experiment_id)",
		"CREATE INDEX IF NOT EXISTS idx_assignments_decided ON assignments(decided_at)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// RecordAssignment appends one decision. A missing ID is generated and a
// zero DecidedAt becomes the current time.
func (s *SQLite) RecordAssignment(ctx context.Context, assignment models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.New().String()
	}
	if assignment.DecidedAt.IsZero() {
		assignment.DecidedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, experiment_id, variation, source, request_id, domain_hash, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		assignment.ID,
		string(assignment.ExperimentID),
		int(assignment.Variation),
		string(assignment.Source),
		nullString(assignment.RequestID),
		int64(assignment.DomainHash),
		assignment.DecidedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// Stats aggregates assignments for an experiment in [since, until).
func (s *SQLite) Stats(ctx context.Context, experimentID models.ExperimentID, since, until time.Time) (models.ExperimentStats, error) {
	stats := models.ExperimentStats{
		ExperimentID: experimentID,
		Since:        since,
		Until:        until,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT variation, COUNT(*)
		FROM assignments
		WHERE experiment_id = ? AND decided_at >= ? AND decided_at < ?
		GROUP BY variation
		ORDER BY variation ASC
	`, string(experimentID), since.Unix(), until.Unix())
	if err != nil {
		return stats, fmt.Errorf("failed to query variation counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vc models.VariationCount
		if err := rows.Scan(&vc.Variation, &vc.Count); err != nil {
			return stats, fmt.Errorf("failed to scan variation count: %w", err)
		}
		stats.Variations = append(stats.Variations, vc)
		stats.Total += vc.Count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to read variation counts: %w", err)
	}

	perDay, err := s.perDay(ctx, experimentID, since, until)
	if err != nil {
		return stats, err
	}
	stats.PerDay = perDay
	return stats, nil
}

func (s *SQLite) perDay(ctx context.Context, experimentID models.ExperimentID, since, until time.Time) ([]models.DayCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', decided_at, 'unixepoch') AS day, COUNT(*)
		FROM assignments
		WHERE experiment_id = ? AND decided_at >= ? AND decided_at < ?
		GROUP BY day
		ORDER BY day ASC
	`, string(experimentID), since.Unix(), until.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query per-day counts: %w", err)
	}
	defer rows.Close()

	var days []models.DayCount
	for rows.Next() {
		var dc models.DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan per-day count: %w", err)
		}
		days = append(days, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read per-day counts: %w", err)
	}
	return days, nil
}

// PurgeBefore deletes assignments decided before cutoff.
func (s *SQLite) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM assignments WHERE decided_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge assignments: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged assignments: %w", err)
	}
	return removed, nil
}

// Close releases the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
