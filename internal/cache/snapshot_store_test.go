package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"johari/api/internal/store"
)

type fakeSnapshotStore struct {
	snapshots map[string]store.AggregateSnapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]store.AggregateSnapshot)}
}

func (f *fakeSnapshotStore) GetSnapshot(_ context.Context, assessmentID string) (store.AggregateSnapshot, error) {
	snapshot, ok := f.snapshots[assessmentID]
	if !ok {
		return store.AggregateSnapshot{}, sql.ErrNoRows
	}
	return snapshot, nil
}

func (f *fakeSnapshotStore) SaveSnapshot(_ context.Context, snapshot store.AggregateSnapshot) error {
	f.snapshots[snapshot.AssessmentID] = snapshot
	return nil
}

func (f *fakeSnapshotStore) DeleteSnapshot(_ context.Context, assessmentID string) error {
	delete(f.snapshots, assessmentID)
	return nil
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	fs := newFakeSnapshotStore()
	c := NewSnapshotCache(fs, time.Hour)
	ctx := context.Background()

	entry := testEntry()
	if err := c.Set(ctx, "asmt-1", entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := c.Get(ctx, "asmt-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Window.Blind) != len(entry.Window.Blind) {
		t.Errorf("Blind = %v, want %v", got.Window.Blind, entry.Window.Blind)
	}
}

func TestSnapshotCacheStaleEntryIsAMiss(t *testing.T) {
	fs := newFakeSnapshotStore()
	c := NewSnapshotCache(fs, time.Hour)
	ctx := context.Background()

	entry := testEntry()
	entry.ComputedAt = time.Now().Add(-2 * time.Hour)
	if err := c.Set(ctx, "asmt-1", entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, ok, err := c.Get(ctx, "asmt-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected stale entry to miss")
	}
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	fs := newFakeSnapshotStore()
	c := NewSnapshotCache(fs, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "asmt-1", testEntry()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Invalidate(ctx, "asmt-1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "asmt-1"); ok {
		t.Fatal("expected entry to be gone after invalidation")
	}
}
