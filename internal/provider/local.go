package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/pkg/models"
)

// defaultWatchDebounce coalesces bursts of file events into one reload.
const defaultWatchDebounce = 250 * time.Millisecond

// Local serves variation records from a YAML file on disk instead of a
// remote provider. It is intended for development and for deployments that
// pin their experiment definitions in version control.
//
// File format:
//
//	experiments:
//	  myExp:
//	    variations:
//	      - id: 0
//	        weight: 0.25
//	      - id: 1
//	        weight: 0.75
type Local struct {
	path   string
	logger *slog.Logger

	mu          sync.RWMutex
	experiments map[string][]models.VariationRecord

	watcher     *fsnotify.Watcher
	watchMu     sync.Mutex
	watchWg     sync.WaitGroup
	watchCancel context.CancelFunc
	debounce    time.Duration
}

var _ experiment.Source = (*Local)(nil)

type localFile struct {
	Experiments map[string]localExperiment `yaml:"experiments"`
}

type localExperiment struct {
	Variations []models.VariationRecord `yaml:"variations"`
}

// LocalOption configures a Local source.
type LocalOption func(*Local)

// WithLocalLogger sets the logger.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// WithWatchDebounce sets how long file events are coalesced before a reload.
func WithWatchDebounce(d time.Duration) LocalOption {
	return func(l *Local) {
		if d > 0 {
			l.debounce = d
		}
	}
}

// NewLocal loads the experiment file at path and returns a source backed
// by it. The file must exist and parse.
func NewLocal(path string, opts ...LocalOption) (*Local, error) {
	l := &Local{
		path:     path,
		logger:   slog.Default().With("component", "provider.local"),
		debounce: defaultWatchDebounce,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the backing file path.
func (l *Local) Path() string {
	return l.path
}

// Variations returns the records for an experiment from the loaded file.
func (l *Local) Variations(_ context.Context, id models.ExperimentID) ([]models.VariationRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	records, ok := l.experiments[string(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExperimentNotFound, id)
	}
	return records, nil
}

// Experiments returns the defined experiment IDs, sorted.
func (l *Local) Experiments() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.experiments))
	for id := range l.experiments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reload re-reads the backing file and swaps in its contents. On error the
// previously loaded experiments stay in effect.
func (l *Local) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read experiment file: %w", err)
	}

	var file localFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse experiment file %s: %w", l.path, err)
	}

	experiments := make(map[string][]models.VariationRecord, len(file.Experiments))
	for id, exp := range file.Experiments {
		experiments[id] = exp.Variations
	}

	l.mu.Lock()
	l.experiments = experiments
	l.mu.Unlock()

	l.logger.Info("loaded experiment file", "path", l.path, "experiments", len(experiments))
	return nil
}

// StartWatching reloads the file whenever it changes on disk. The parent
// directory is watched so that editor save-via-rename is seen too.
func (l *Local) StartWatching(ctx context.Context) error {
	l.watchMu.Lock()
	if l.watcher != nil {
		l.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.watchMu.Unlock()
		return err
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		_ = watcher.Close()
		l.watchMu.Unlock()
		return err
	}
	l.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	l.watchCancel = cancel
	debounce := l.debounce
	l.watchMu.Unlock()

	l.watchWg.Add(1)
	go l.watchLoop(watchCtx, watcher, debounce)
	return nil
}

// Close stops any active watcher.
func (l *Local) Close() error {
	l.watchMu.Lock()
	if l.watchCancel != nil {
		l.watchCancel()
		l.watchCancel = nil
	}
	watcher := l.watcher
	l.watcher = nil
	l.watchMu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	l.watchWg.Wait()
	return nil
}

func (l *Local) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	defer l.watchWg.Done()

	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if err := l.Reload(); err != nil {
				l.logger.Warn("experiment file reload failed", "error", err)
			}
		})
	}

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("experiment file watch error", "error", err)
		}
	}
}
