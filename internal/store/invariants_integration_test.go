package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// These tests exercise the schema-level invariants that the service layer
// relies on: the per-peer uniqueness constraint, the guarded capacity
// counter, and cascade deletion. They need a real Postgres and are skipped
// otherwise.

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	t.Skip("TEST_DATABASE_URL not set; skipping store integration test")
	return ""
}

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func seedAssessment(t *testing.T, s *PostgresStore, id string, maxPeers int) PeerLink {
	t.Helper()
	ctx := context.Background()
	link := PeerLink{
		ID:           id + "-link",
		AssessmentID: id,
		TokenHash:    id + "-hash",
		MaxPeers:     maxPeers,
		ExpiresAt:    time.Now().Add(30 * 24 * time.Hour),
	}
	err := s.InsertAssessmentWithLink(ctx, Assessment{
		ID:         id,
		Adjectives: []string{"witty", "caring", "calm", "logical", "artistic", "patient"},
	}, link)
	if err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteAssessment(ctx, id) })
	return link
}

func TestDuplicatePeerFeedbackRejectedByConstraint(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	link := seedAssessment(t, s, "it-dedup", 5)

	feedback := PeerFeedback{
		ID:           "it-dedup-fb1",
		AssessmentID: link.AssessmentID,
		LinkID:       link.ID,
		PeerUserID:   "peer-1",
		Adjectives:   []string{"witty", "friendly", "calm", "modest", "precise", "grounded"},
	}
	if _, err := s.InsertPeerFeedback(ctx, feedback); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	feedback.ID = "it-dedup-fb2"
	if _, err := s.InsertPeerFeedback(ctx, feedback); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("second insert error = %v, want ErrDuplicateFeedback", err)
	}

	count, err := s.FeedbackCount(ctx, link.AssessmentID)
	if err != nil {
		t.Fatalf("feedback count: %v", err)
	}
	if count != 1 {
		t.Fatalf("feedback count = %d, want 1", count)
	}

	// The rejected insert must not have bumped the counter either.
	reloaded, err := s.GetLinkByTokenHash(ctx, link.TokenHash)
	if err != nil {
		t.Fatalf("reload link: %v", err)
	}
	if reloaded.AcceptedCount != 1 {
		t.Fatalf("accepted count = %d, want 1", reloaded.AcceptedCount)
	}
}

func TestGuardedIncrementStopsAtCapacity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	link := seedAssessment(t, s, "it-capacity", 2)

	for i, peer := range []string{"peer-a", "peer-b"} {
		_, err := s.InsertPeerFeedback(ctx, PeerFeedback{
			ID:           link.AssessmentID + "-fb" + peer,
			AssessmentID: link.AssessmentID,
			LinkID:       link.ID,
			PeerUserID:   peer,
			Adjectives:   []string{"witty", "friendly", "calm", "modest", "precise", "grounded"},
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	_, err := s.InsertPeerFeedback(ctx, PeerFeedback{
		ID:           link.AssessmentID + "-fb3",
		AssessmentID: link.AssessmentID,
		LinkID:       link.ID,
		PeerUserID:   "peer-c",
		Adjectives:   []string{"witty", "friendly", "calm", "modest", "precise", "grounded"},
	})
	if !errors.Is(err, ErrLinkFull) {
		t.Fatalf("over-capacity insert error = %v, want ErrLinkFull", err)
	}
}

func TestDeleteAssessmentCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	link := seedAssessment(t, s, "it-cascade", 5)

	if _, err := s.InsertPeerFeedback(ctx, PeerFeedback{
		ID:           "it-cascade-fb1",
		AssessmentID: link.AssessmentID,
		LinkID:       link.ID,
		PeerUserID:   "peer-1",
		Adjectives:   []string{"witty", "friendly", "calm", "modest", "precise", "grounded"},
	}); err != nil {
		t.Fatalf("insert feedback: %v", err)
	}
	if err := s.SaveSnapshot(ctx, AggregateSnapshot{
		AssessmentID: link.AssessmentID,
		Payload:      []byte(`{}`),
		ComputedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	if err := s.DeleteAssessment(ctx, link.AssessmentID); err != nil {
		t.Fatalf("delete assessment: %v", err)
	}

	count, err := s.FeedbackCount(ctx, link.AssessmentID)
	if err != nil {
		t.Fatalf("feedback count: %v", err)
	}
	if count != 0 {
		t.Fatalf("feedback survived cascade: %d rows", count)
	}
	if _, err := s.GetLinkByTokenHash(ctx, link.TokenHash); err == nil {
		t.Fatal("peer link survived cascade")
	}
	if _, err := s.GetSnapshot(ctx, link.AssessmentID); err == nil {
		t.Fatal("snapshot survived cascade")
	}

	deleted, err := s.DeleteOrphans(ctx)
	if err != nil {
		t.Fatalf("orphan sweep: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("orphan sweep deleted %d rows after cascade, want 0", deleted)
	}
}
