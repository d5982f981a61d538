package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/metrics"
)

const keyPrefix = "attendance-kiosk:snapshot:"

// Fetcher is the backend the cache reads through to.
type Fetcher interface {
	FetchAll(ctx context.Context) (facematch.Snapshot, error)
}

// SnapshotCache is a read-through cache of the enrollment snapshot. Cache
// failures are logged and fall back to the backend; only backend failures
// are returned.
type SnapshotCache struct {
	store Store
	next  Fetcher
	key   string
	ttl   time.Duration
}

// NewSnapshotCache caches snapshots of next under a key derived from source
// (e.g. "postgres" or "ledger").
func NewSnapshotCache(store Store, next Fetcher, source string, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{store: store, next: next, key: keyPrefix + source, ttl: ttl}
}

type cachedRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Descriptor []float32 `json:"descriptor,omitempty"`
}

// FetchAll returns the cached snapshot or fetches and caches a fresh one.
func (c *SnapshotCache) FetchAll(ctx context.Context) (facematch.Snapshot, error) {
	if snapshot, ok := c.load(ctx); ok {
		metrics.CacheHits.WithLabelValues("snapshot").Inc()
		return snapshot, nil
	}
	metrics.CacheMisses.WithLabelValues("snapshot").Inc()

	snapshot, err := c.next.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, snapshot); err != nil {
		slog.Warn("could not cache enrollment snapshot", "key", c.key, "error", err)
	}
	return snapshot, nil
}

// Invalidate drops the cached snapshot so the next fetch hits the backend.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) load(ctx context.Context) (facematch.Snapshot, bool) {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			slog.Warn("snapshot cache unavailable", "key", c.key, "error", err)
		}
		return nil, false
	}

	var records []cachedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("discarding corrupt cached snapshot", "key", c.key, "error", err)
		return nil, false
	}

	snapshot := make(facematch.Snapshot, len(records))
	for i, r := range records {
		snapshot[i] = facematch.Record{EmployeeID: r.ID, DisplayName: r.Name}
		if r.Descriptor != nil {
			snapshot[i].Descriptor = facematch.Descriptor(r.Descriptor)
		}
	}
	return snapshot, true
}

func (c *SnapshotCache) save(ctx context.Context, snapshot facematch.Snapshot) error {
	records := make([]cachedRecord, len(snapshot))
	for i, r := range snapshot {
		records[i] = cachedRecord{ID: r.EmployeeID, Name: r.DisplayName, Descriptor: r.Descriptor}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.store.Set(ctx, c.key, data, c.ttl)
}
