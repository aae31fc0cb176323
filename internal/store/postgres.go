package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateFeedback is returned when the (assessment, peer) pair
	// already has a feedback row. Backed by a unique constraint, so the
	// check holds under concurrent submissions.
	ErrDuplicateFeedback = errors.New("feedback already submitted for this assessment")
	// ErrLinkFull is returned when the guarded counter increment finds the
	// peer link already at max_peers.
	ErrLinkFull = errors.New("peer link has no remaining capacity")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.IsEmailVerified, nullable(user.VerificationToken))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified, COALESCE(verification_token, ''), created_at
		FROM users WHERE email=$1
	`, email))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified, COALESCE(verification_token, ''), created_at
		FROM users WHERE id=$1
	`, userID))
}

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified, &user.VerificationToken, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// --- assessments and peer links ---

// InsertAssessmentWithLink persists a new assessment and its peer link in
// one transaction so a partially created session can never be observed.
func (s *PostgresStore) InsertAssessmentWithLink(ctx context.Context, assessment Assessment, link PeerLink) error {
	adjectives, err := json.Marshal(assessment.Adjectives)
	if err != nil {
		return fmt.Errorf("marshal assessment adjectives: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assessment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assessments (id, owner_user_id, adjectives)
		VALUES ($1, $2, $3)
	`, assessment.ID, nullable(assessment.OwnerUserID), string(adjectives)); err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO peer_links (id, assessment_id, token_hash, max_peers, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, link.ID, link.AssessmentID, link.TokenHash, link.MaxPeers, link.ExpiresAt); err != nil {
		return fmt.Errorf("insert peer link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assessment tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAssessment(ctx context.Context, assessmentID string) (Assessment, error) {
	var item Assessment
	var ownerID sql.NullString
	var adjectivesRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, adjectives, notified_at, created_at
		FROM assessments WHERE id=$1
	`, assessmentID).Scan(&item.ID, &ownerID, &adjectivesRaw, &item.NotifiedAt, &item.CreatedAt)
	if err != nil {
		return Assessment{}, err
	}
	item.OwnerUserID = ownerID.String
	if err := json.Unmarshal(adjectivesRaw, &item.Adjectives); err != nil {
		return Assessment{}, fmt.Errorf("unmarshal assessment adjectives: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListAssessmentsByOwner(ctx context.Context, ownerUserID string) ([]Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_user_id, adjectives, notified_at, created_at
		FROM assessments WHERE owner_user_id=$1
		ORDER BY created_at DESC
	`, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	items := make([]Assessment, 0)
	for rows.Next() {
		var item Assessment
		var ownerID sql.NullString
		var adjectivesRaw []byte
		if err := rows.Scan(&item.ID, &ownerID, &adjectivesRaw, &item.NotifiedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		item.OwnerUserID = ownerID.String
		if err := json.Unmarshal(adjectivesRaw, &item.Adjectives); err != nil {
			return nil, fmt.Errorf("unmarshal assessment adjectives: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return items, nil
}

// ClaimNotification flips notified_at exactly once per assessment. It
// reports whether this caller won the claim, so the "results ready"
// notification cannot fire twice even under concurrent submissions.
func (s *PostgresStore) ClaimNotification(ctx context.Context, assessmentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assessments SET notified_at=NOW()
		WHERE id=$1 AND notified_at IS NULL
	`, assessmentID)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim notification rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetLinkByTokenHash(ctx context.Context, tokenHash string) (PeerLink, error) {
	var link PeerLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, token_hash, max_peers, accepted_count, created_at, expires_at
		FROM peer_links WHERE token_hash=$1
	`, tokenHash).Scan(&link.ID, &link.AssessmentID, &link.TokenHash, &link.MaxPeers, &link.AcceptedCount, &link.CreatedAt, &link.ExpiresAt)
	if err != nil {
		return PeerLink{}, err
	}
	return link, nil
}

func (s *PostgresStore) GetLinkByAssessment(ctx context.Context, assessmentID string) (PeerLink, error) {
	var link PeerLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, token_hash, max_peers, accepted_count, created_at, expires_at
		FROM peer_links WHERE assessment_id=$1
		ORDER BY created_at DESC LIMIT 1
	`, assessmentID).Scan(&link.ID, &link.AssessmentID, &link.TokenHash, &link.MaxPeers, &link.AcceptedCount, &link.CreatedAt, &link.ExpiresAt)
	if err != nil {
		return PeerLink{}, err
	}
	return link, nil
}

// --- peer feedback ---

// InsertPeerFeedback writes one feedback row and bumps the link counter in
// a single transaction. The increment is guarded against max_peers, so two
// submissions racing for the last slot cannot both land; the unique
// constraint does the same for a duplicated peer. Returns the new accepted
// count.
func (s *PostgresStore) InsertPeerFeedback(ctx context.Context, feedback PeerFeedback) (int, error) {
	adjectives, err := json.Marshal(feedback.Adjectives)
	if err != nil {
		return 0, fmt.Errorf("marshal feedback adjectives: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin feedback tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var accepted int
	err = tx.QueryRowContext(ctx, `
		UPDATE peer_links SET accepted_count = accepted_count + 1
		WHERE id=$1 AND accepted_count < max_peers
		RETURNING accepted_count
	`, feedback.LinkID).Scan(&accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrLinkFull
	}
	if err != nil {
		return 0, fmt.Errorf("increment link counter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO peer_feedback (id, assessment_id, link_id, peer_user_id, adjectives)
		VALUES ($1, $2, $3, $4, $5)
	`, feedback.ID, feedback.AssessmentID, feedback.LinkID, feedback.PeerUserID, string(adjectives)); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateFeedback
		}
		return 0, fmt.Errorf("insert peer feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit feedback tx: %w", err)
	}
	return accepted, nil
}

func (s *PostgresStore) FeedbackCount(ctx context.Context, assessmentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM peer_feedback WHERE assessment_id=$1
	`, assessmentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count peer feedback: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListPeerFeedback(ctx context.Context, assessmentID string) ([]PeerFeedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assessment_id, link_id, peer_user_id, adjectives, created_at
		FROM peer_feedback WHERE assessment_id=$1
		ORDER BY created_at ASC
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list peer feedback: %w", err)
	}
	defer rows.Close()

	items := make([]PeerFeedback, 0)
	for rows.Next() {
		var item PeerFeedback
		var adjectivesRaw []byte
		if err := rows.Scan(&item.ID, &item.AssessmentID, &item.LinkID, &item.PeerUserID, &adjectivesRaw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan peer feedback: %w", err)
		}
		if err := json.Unmarshal(adjectivesRaw, &item.Adjectives); err != nil {
			return nil, fmt.Errorf("unmarshal feedback adjectives: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peer feedback: %w", err)
	}
	return items, nil
}

// --- aggregate snapshots ---

func (s *PostgresStore) GetSnapshot(ctx context.Context, assessmentID string) (AggregateSnapshot, error) {
	var snapshot AggregateSnapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT assessment_id, payload, computed_at
		FROM aggregate_snapshots WHERE assessment_id=$1
	`, assessmentID).Scan(&snapshot.AssessmentID, &snapshot.Payload, &snapshot.ComputedAt)
	if err != nil {
		return AggregateSnapshot{}, err
	}
	return snapshot, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snapshot AggregateSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aggregate_snapshots (assessment_id, payload, computed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (assessment_id) DO UPDATE SET payload=EXCLUDED.payload, computed_at=EXCLUDED.computed_at
	`, snapshot.AssessmentID, snapshot.Payload, snapshot.ComputedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSnapshot(ctx context.Context, assessmentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM aggregate_snapshots WHERE assessment_id=$1`, assessmentID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// --- cleanup sweep ---

// ListExpiredAssessmentIDs returns assessments whose peer link expired
// before the cutoff.
func (s *PostgresStore) ListExpiredAssessmentIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT a.id
		FROM assessments a
		JOIN peer_links l ON l.assessment_id = a.id
		WHERE l.expires_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired assessments: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired assessment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired assessments: %w", err)
	}
	return ids, nil
}

// DeleteAssessment removes one assessment; links, feedback and snapshots
// follow via ON DELETE CASCADE.
func (s *PostgresStore) DeleteAssessment(ctx context.Context, assessmentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE id=$1`, assessmentID)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	return nil
}

// DeleteOrphans removes child rows whose parent assessment is gone. The
// schema's cascades make this a no-op in the normal case; it exists as
// consistency repair and is safe to re-run.
func (s *PostgresStore) DeleteOrphans(ctx context.Context) (int64, error) {
	var total int64
	for _, query := range []string{
		`DELETE FROM peer_feedback WHERE assessment_id NOT IN (SELECT id FROM assessments)`,
		`DELETE FROM peer_links WHERE assessment_id NOT IN (SELECT id FROM assessments)`,
		`DELETE FROM aggregate_snapshots WHERE assessment_id NOT IN (SELECT id FROM assessments)`,
	} {
		result, err := s.db.ExecContext(ctx, query)
		if err != nil {
			return total, fmt.Errorf("delete orphans: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("delete orphans rows: %w", err)
		}
		total += affected
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
