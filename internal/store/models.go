package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Assessment is one self-assessment session. OwnerUserID is empty for
// anonymous subjects; the record is immutable after creation, a retake is
// a new Assessment.
type Assessment struct {
	ID          string
	OwnerUserID string
	Adjectives  []string
	NotifiedAt  *time.Time
	CreatedAt   time.Time
}

// PeerLink is the shareable invitation attached to an assessment. Only the
// SHA-256 hash of the token is persisted; the raw token is returned once
// at creation.
type PeerLink struct {
	ID            string
	AssessmentID  string
	TokenHash     string
	MaxPeers      int
	AcceptedCount int
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// PeerFeedback is one peer's adjective selection for one assessment. The
// (AssessmentID, PeerUserID) pair is unique at the schema level.
type PeerFeedback struct {
	ID           string
	AssessmentID string
	LinkID       string
	PeerUserID   string
	Adjectives   []string
	CreatedAt    time.Time
}

// AggregateSnapshot is the persisted window memo for one assessment. It is
// derived data with a TTL, never a source of truth.
type AggregateSnapshot struct {
	AssessmentID string
	Payload      []byte
	ComputedAt   time.Time
}
