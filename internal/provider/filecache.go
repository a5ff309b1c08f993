package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/haasonsaas/splitserve/pkg/models"
)

// fileCache persists fetched variation records under a directory, one JSON
// file per experiment. Experiment IDs are hashed into file names so arbitrary
// IDs never leak into paths.
type fileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// cacheEnvelope is the on-disk record format.
type cacheEnvelope struct {
	ExperimentID string                   `json:"experiment_id"`
	FetchedAt    time.Time                `json:"fetched_at"`
	Variations   []models.VariationRecord `json:"variations"`
}

func newFileCache(dir string, ttl time.Duration) *fileCache {
	return &fileCache{dir: dir, ttl: ttl, now: time.Now}
}

func (fc *fileCache) path(experimentID string) string {
	sum := sha256.Sum256([]byte(experimentID))
	return filepath.Join(fc.dir, hex.EncodeToString(sum[:])[:16]+".json")
}

// get returns the cached records for an experiment if they are still fresh.
// Unreadable or undecodable entries count as misses.
func (fc *fileCache) get(experimentID string) ([]models.VariationRecord, bool) {
	data, err := os.ReadFile(fc.path(experimentID))
	if err != nil {
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if fc.ttl > 0 && fc.now().Sub(env.FetchedAt) >= fc.ttl {
		return nil, false
	}
	return env.Variations, true
}

func (fc *fileCache) put(experimentID string, records []models.VariationRecord) error {
	if err := os.MkdirAll(fc.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.Marshal(cacheEnvelope{
		ExperimentID: experimentID,
		FetchedAt:    fc.now(),
		Variations:   records,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := os.WriteFile(fc.path(experimentID), data, 0o600); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// entries lists the cache files under the directory.
func (fc *fileCache) entries() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(fc.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// purge removes cache files and returns how many were deleted. With
// expiredOnly set, entries still inside their TTL survive.
func (fc *fileCache) purge(expiredOnly bool) (int, error) {
	paths, err := fc.entries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		if expiredOnly && !fc.expired(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
		removed++
	}
	return removed, nil
}

// expired reports whether a cache file is past its TTL. Undecodable files
// count as expired so purge can reclaim them.
func (fc *fileCache) expired(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return !os.IsNotExist(err)
	}
	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return true
	}
	return fc.ttl > 0 && fc.now().Sub(env.FetchedAt) >= fc.ttl
}

// CacheStatus summarizes the state of a client's disk cache.
type CacheStatus struct {
	Dir     string `json:"dir"`
	Entries int    `json:"entries"`
	Expired int    `json:"expired"`
	Bytes   int64  `json:"bytes"`
}

func (fc *fileCache) status() (CacheStatus, error) {
	status := CacheStatus{Dir: fc.dir}
	paths, err := fc.entries()
	if err != nil {
		return status, err
	}
	for _, path := range paths {
		status.Entries++
		if fc.expired(path) {
			status.Expired++
		}
		if info, err := os.Stat(path); err == nil {
			status.Bytes += info.Size()
		}
	}
	return status, nil
}
