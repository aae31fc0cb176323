package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"johari/api/internal/store"
)

// SnapshotStore persists snapshot rows for the cache.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, assessmentID string) (store.AggregateSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot store.AggregateSnapshot) error
	DeleteSnapshot(ctx context.Context, assessmentID string) error
}

// SnapshotCache backs the window memo with the aggregate_snapshots table
// when Redis is not configured. Staleness is checked on read against the
// TTL; the cleanup of replaced rows is the upsert itself.
type SnapshotCache struct {
	store SnapshotStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSnapshotCache(snapshotStore SnapshotStore, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{store: snapshotStore, ttl: ttl, now: time.Now}
}

func (c *SnapshotCache) Get(ctx context.Context, assessmentID string) (Entry, bool, error) {
	snapshot, err := c.store.GetSnapshot(ctx, assessmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	if c.now().Sub(snapshot.ComputedAt) >= c.ttl {
		return Entry{}, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(snapshot.Payload, &entry.Window); err != nil {
		return Entry{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	entry.ComputedAt = snapshot.ComputedAt
	return entry, true, nil
}

func (c *SnapshotCache) Set(ctx context.Context, assessmentID string, entry Entry) error {
	payload, err := json.Marshal(entry.Window)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.store.SaveSnapshot(ctx, store.AggregateSnapshot{
		AssessmentID: assessmentID,
		Payload:      payload,
		ComputedAt:   entry.ComputedAt,
	})
}

func (c *SnapshotCache) Invalidate(ctx context.Context, assessmentID string) error {
	return c.store.DeleteSnapshot(ctx, assessmentID)
}
