// Package cache provides the time-bounded memo for computed Johari
// windows. The cache is never a source of truth: a miss or a stale entry
// simply forces a recomputation from the assessment and its feedback.
package cache

import (
	"context"
	"time"

	"johari/api/internal/johari"
)

// Entry is one cached window with its computation timestamp.
type Entry struct {
	Window     johari.Window `json:"window"`
	ComputedAt time.Time     `json:"computedAt"`
}

// Cache stores computed windows per assessment. Get returns ok=false on a
// miss or when the entry is older than the configured TTL.
type Cache interface {
	Get(ctx context.Context, assessmentID string) (Entry, bool, error)
	Set(ctx context.Context, assessmentID string, entry Entry) error
	Invalidate(ctx context.Context, assessmentID string) error
}
