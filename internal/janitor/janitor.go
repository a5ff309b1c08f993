// Package janitor runs scheduled maintenance: purging expired provider
// cache entries and trimming the assignment log to its retention window.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/splitserve/internal/observability"
)

var cronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Task names, also used as metric labels.
const (
	TaskCachePurge = "cache_purge"
	TaskStorePurge = "store_purge"
)

// CachePurger removes provider cache entries past their TTL.
type CachePurger interface {
	PurgeCache(expiredOnly bool) (int, error)
}

// AssignmentPurger deletes assignments older than a cutoff.
type AssignmentPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config wires the janitor's tasks. A nil Cache leaves the cache task out;
// a nil Store or non-positive Retention leaves the store task out.
type Config struct {
	Cache         CachePurger
	CacheSchedule string

	Store         AssignmentPurger
	StoreSchedule string
	Retention     time.Duration
}

type task struct {
	name     string
	schedule cron.Schedule
	run      func(ctx context.Context) (int64, error)

	nextRun time.Time
	lastRun time.Time
	lastErr string
}

// TaskStatus is a snapshot of one maintenance task.
type TaskStatus struct {
	Name      string    `json:"name"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Janitor runs maintenance tasks on their cron schedules.
type Janitor struct {
	logger       *slog.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	tickInterval time.Duration

	mu      sync.Mutex
	tasks   []*task
	started bool
	wg      sync.WaitGroup
}

// Option configures the janitor.
type Option func(*Janitor)

// WithLogger configures the janitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Janitor) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithMetrics configures metric recording for task runs.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(j *Janitor) {
		j.metrics = metrics
	}
}

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// WithTickInterval overrides the scheduler tick interval.
func WithTickInterval(interval time.Duration) Option {
	return func(j *Janitor) {
		if interval > 0 {
			j.tickInterval = interval
		}
	}
}

// New creates a janitor from config. A config wiring neither task yields a
// janitor with no tasks; callers can check Tasks() before starting it.
func New(cfg Config, opts ...Option) (*Janitor, error) {
	j := &Janitor{
		logger:       slog.Default().With("component", "janitor"),
		now:          time.Now,
		tickInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(j)
	}

	now := j.now()
	if cfg.Cache != nil {
		schedule, err := cronParser.Parse(cfg.CacheSchedule)
		if err != nil {
			return nil, fmt.Errorf("cache schedule: %w", err)
		}
		cache := cfg.Cache
		j.tasks = append(j.tasks, &task{
			name:     TaskCachePurge,
			schedule: schedule,
			nextRun:  schedule.Next(now),
			run: func(context.Context) (int64, error) {
				removed, err := cache.PurgeCache(true)
				return int64(removed), err
			},
		})
	}
	if cfg.Store != nil && cfg.Retention > 0 {
		schedule, err := cronParser.Parse(cfg.StoreSchedule)
		if err != nil {
			return nil, fmt.Errorf("store schedule: %w", err)
		}
		store := cfg.Store
		retention := cfg.Retention
		j.tasks = append(j.tasks, &task{
			name:     TaskStorePurge,
			schedule: schedule,
			nextRun:  schedule.Next(now),
			run: func(ctx context.Context) (int64, error) {
				return store.PurgeBefore(ctx, j.now().Add(-retention))
			},
		})
	}
	return j, nil
}

// Start begins running tasks until the context is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return nil
	}
	j.started = true
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.runDue(ctx)
			}
		}
	}()
	return nil
}

// Stop waits for the janitor loop to stop.
func (j *Janitor) Stop(ctx context.Context) error {
	if j == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes due tasks immediately (primarily for tests).
func (j *Janitor) RunOnce(ctx context.Context) int {
	if j == nil {
		return 0
	}
	return j.runDue(ctx)
}

// Tasks returns a snapshot of the configured maintenance tasks.
func (j *Janitor) Tasks() []TaskStatus {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]TaskStatus, 0, len(j.tasks))
	for _, t := range j.tasks {
		out = append(out, TaskStatus{
			Name:      t.name,
			NextRun:   t.nextRun,
			LastRun:   t.lastRun,
			LastError: t.lastErr,
		})
	}
	return out
}

func (j *Janitor) runDue(ctx context.Context) int {
	now := j.now()

	j.mu.Lock()
	tasks := make([]*task, len(j.tasks))
	copy(tasks, j.tasks)
	j.mu.Unlock()

	count := 0
	for _, t := range tasks {
		j.mu.Lock()
		if now.Before(t.nextRun) {
			j.mu.Unlock()
			continue
		}
		t.lastRun = now
		j.mu.Unlock()

		count++
		j.execute(ctx, t, now)
	}
	return count
}

func (j *Janitor) execute(ctx context.Context, t *task, now time.Time) {
	started := time.Now()
	removed, err := t.run(ctx)
	elapsed := time.Since(started)

	status := "success"
	outcome := "completed"
	errText := ""
	if err != nil {
		status = "error"
		outcome = "error"
		errText = err.Error()
		j.logger.Warn("janitor task failed", "task", t.name, "error", err)
	} else {
		j.logger.Info("janitor task completed", "task", t.name, "removed", removed, "duration", elapsed)
	}

	if j.metrics != nil {
		j.metrics.RecordJanitorRun(t.name, status)
	}
	observability.EmitJanitorRun(&observability.JanitorRunEvent{
		Task:       t.name,
		Outcome:    outcome,
		Removed:    removed,
		DurationMs: elapsed.Milliseconds(),
		Error:      errText,
	})

	j.mu.Lock()
	t.lastErr = errText
	t.nextRun = t.schedule.Next(now)
	j.mu.Unlock()
}
