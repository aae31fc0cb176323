package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"johari/api/internal/auth"
	"johari/api/internal/authpw"
	"johari/api/internal/cache"
	"johari/api/internal/catalog"
	"johari/api/internal/config"
	"johari/api/internal/export"
	"johari/api/internal/johari"
	"johari/api/internal/notify"
	"johari/api/internal/store"
	"johari/api/internal/util"
)

const (
	minAdjectives = 6
	maxAdjectives = 10
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Email     string
	ExpiresAt time.Time
}

// dataStore is the persistence surface the service needs. PostgresStore
// implements it; tests swap in a fake.
type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)

	InsertAssessmentWithLink(ctx context.Context, assessment store.Assessment, link store.PeerLink) error
	GetAssessment(ctx context.Context, assessmentID string) (store.Assessment, error)
	ListAssessmentsByOwner(ctx context.Context, ownerUserID string) ([]store.Assessment, error)
	ClaimNotification(ctx context.Context, assessmentID string) (bool, error)

	GetLinkByTokenHash(ctx context.Context, tokenHash string) (store.PeerLink, error)
	GetLinkByAssessment(ctx context.Context, assessmentID string) (store.PeerLink, error)
	InsertPeerFeedback(ctx context.Context, feedback store.PeerFeedback) (int, error)
	FeedbackCount(ctx context.Context, assessmentID string) (int, error)
	ListPeerFeedback(ctx context.Context, assessmentID string) ([]store.PeerFeedback, error)

	ListExpiredAssessmentIDs(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteAssessment(ctx context.Context, assessmentID string) error
	DeleteOrphans(ctx context.Context) (int64, error)
}

type resultsNotifier interface {
	Configured() bool
	ResultsReady(ctx context.Context, owner store.User, assessmentID string, peerCount int) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	cache    cache.Cache
	notifier resultsNotifier
	exporter *export.Service
	authpw   *authpw.Service
	now      func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore, windowCache cache.Cache, notifier *notify.Service, exporter *export.Service) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    dataStore,
		cache:    windowCache,
		exporter: exporter,
		authpw:   authpw.NewService(dataStore),
		now:      time.Now,
	}
	if notifier != nil {
		svc.notifier = notifier
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SweepToken() string {
	return s.cfg.SweepToken
}

func (s *Service) SMTPConfigured() bool {
	return s.notifier != nil && s.notifier.Configured()
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// CreateSession issues a signed access token for a verified user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	expiresAt := s.now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   util.NewID("jti"),
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	// Reject tokens for users deleted after issuance.
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// validateAdjectives normalizes the submitted set and enforces the 6..10
// size bound plus catalog membership.
func validateAdjectives(adjectives []string) ([]string, *DomainError) {
	clean, unknown := catalog.Normalize(adjectives)
	if len(unknown) > 0 {
		return nil, errValidation("Adjectives outside the catalog", map[string]any{"unknown": unknown})
	}
	if len(clean) < minAdjectives || len(clean) > maxAdjectives {
		return nil, errValidation("Adjective count out of range", map[string]any{
			"count": len(clean),
			"min":   minAdjectives,
			"max":   maxAdjectives,
		})
	}
	return clean, nil
}

// CreateAssessment persists a self-assessment and its shareable peer link.
// The raw share token is returned exactly once; only its hash is stored.
func (s *Service) CreateAssessment(ctx context.Context, ownerUserID string, adjectives []string) (map[string]any, error) {
	clean, verr := validateAdjectives(adjectives)
	if verr != nil {
		return nil, verr
	}

	now := s.now()
	shareToken := util.NewShareToken()
	assessment := store.Assessment{
		ID:          util.NewID("asm"),
		OwnerUserID: ownerUserID,
		Adjectives:  clean,
		CreatedAt:   now,
	}
	link := store.PeerLink{
		ID:           util.NewID("lnk"),
		AssessmentID: assessment.ID,
		TokenHash:    auth.HashToken(shareToken),
		MaxPeers:     s.cfg.LinkMaxPeers,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.LinkTTL),
	}
	if err := s.store.InsertAssessmentWithLink(ctx, assessment, link); err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}

	return map[string]any{
		"assessmentId": assessment.ID,
		"shareToken":   shareToken,
		"expiresAt":    link.ExpiresAt.UTC(),
		"maxPeers":     link.MaxPeers,
	}, nil
}

// SubmitPeerFeedback checks link validity and expiry first, then capacity,
// then the per-peer uniqueness constraint.
// Capacity and uniqueness are enforced inside one storage transaction so
// concurrent submissions cannot overshoot or double-count.
func (s *Service) SubmitPeerFeedback(ctx context.Context, token string, peer Session, adjectives []string) (map[string]any, error) {
	clean, verr := validateAdjectives(adjectives)
	if verr != nil {
		return nil, verr
	}

	link, err := s.store.GetLinkByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errLinkExpiredOrInvalid()
		}
		return nil, fmt.Errorf("resolve link: %w", err)
	}
	if !s.now().Before(link.ExpiresAt) {
		return nil, errLinkExpiredOrInvalid()
	}

	feedback := store.PeerFeedback{
		ID:           util.NewID("fbk"),
		AssessmentID: link.AssessmentID,
		LinkID:       link.ID,
		PeerUserID:   peer.UserID,
		Adjectives:   clean,
		CreatedAt:    s.now(),
	}
	accepted, err := s.store.InsertPeerFeedback(ctx, feedback)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrLinkFull):
			return nil, errCapacityExceeded(link.MaxPeers)
		case errors.Is(err, store.ErrDuplicateFeedback):
			return nil, errDuplicateSubmission()
		}
		return nil, fmt.Errorf("insert feedback: %w", err)
	}

	// The underlying data changed; a stale memo must not survive the write.
	if err := s.cache.Invalidate(ctx, link.AssessmentID); err != nil {
		log.Printf(`{"level":"warn","msg":"cache invalidation failed","assessment_id":%q,"error":%q}`, link.AssessmentID, err.Error())
	}

	s.maybeNotifyOwner(ctx, link.AssessmentID, accepted)

	remaining := s.cfg.ReadyThreshold - accepted
	if remaining < 0 {
		remaining = 0
	}
	return map[string]any{
		"acceptedCount": accepted,
		"ready":         accepted >= s.cfg.ReadyThreshold,
		"remaining":     remaining,
	}, nil
}

// maybeNotifyOwner fires the one-time "results ready" message when the
// threshold is crossed. The claim is transition-based and settled in
// storage, so later submissions and concurrent requests cannot re-fire it.
func (s *Service) maybeNotifyOwner(ctx context.Context, assessmentID string, newCount int) {
	if newCount < s.cfg.ReadyThreshold {
		return
	}
	claimed, err := s.store.ClaimNotification(ctx, assessmentID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"notification claim failed","assessment_id":%q,"error":%q}`, assessmentID, err.Error())
		return
	}
	if !claimed || s.notifier == nil {
		return
	}

	assessment, err := s.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"notification owner lookup failed","assessment_id":%q,"error":%q}`, assessmentID, err.Error())
		return
	}
	if assessment.OwnerUserID == "" {
		return
	}
	owner, err := s.store.GetUserByID(ctx, assessment.OwnerUserID)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"notification owner lookup failed","assessment_id":%q,"error":%q}`, assessmentID, err.Error())
		return
	}
	if err := s.notifier.ResultsReady(ctx, owner, assessmentID, newCount); err != nil {
		log.Printf(`{"level":"warn","msg":"results-ready notification failed","assessment_id":%q,"error":%q}`, assessmentID, err.Error())
	}
}

// AggregateResult returns the computed Johari window for an assessment,
// serving a fresh cached entry when one exists.
func (s *Service) AggregateResult(ctx context.Context, assessmentID string) (map[string]any, error) {
	window, computedAt, peerCount, err := s.aggregateWindow(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"assessmentId":  assessmentID,
		"peerCount":     peerCount,
		"computedAt":    computedAt.UTC(),
		"open":          window.Open,
		"blind":         window.Blind,
		"hidden":        window.Hidden,
		"unknown":       window.Unknown,
		"domainSummary": window.DomainSummary,
		"peerPicks":     window.PeerPicks,
	}, nil
}

func (s *Service) aggregateWindow(ctx context.Context, assessmentID string) (johari.Window, time.Time, int, error) {
	count, err := s.store.FeedbackCount(ctx, assessmentID)
	if err != nil {
		return johari.Window{}, time.Time{}, 0, fmt.Errorf("count feedback: %w", err)
	}
	if count < s.cfg.ReadyThreshold {
		return johari.Window{}, time.Time{}, 0, errInsufficientPeerData(count, s.cfg.ReadyThreshold)
	}

	if entry, ok, err := s.cache.Get(ctx, assessmentID); err != nil {
		log.Printf(`{"level":"warn","msg":"cache read failed","assessment_id":%q,"error":%q}`, assessmentID, err.Error())
	} else if ok {
		return entry.Window, entry.ComputedAt, entry.Window.PeerCount, nil
	}

	assessment, err := s.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return johari.Window{}, time.Time{}, 0, domainError(http.StatusNotFound, "NOT_FOUND", "Assessment not found", nil)
		}
		return johari.Window{}, time.Time{}, 0, fmt.Errorf("load assessment: %w", err)
	}
	feedback, err := s.store.ListPeerFeedback(ctx, assessmentID)
	if err != nil {
		return johari.Window{}, time.Time{}, 0, fmt.Errorf("load feedback: %w", err)
	}
	peers := make([][]string, 0, len(feedback))
	for _, fb := range feedback {
		peers = append(peers, fb.Adjectives)
	}

	window := johari.Classify(assessment.Adjectives, peers)
	computedAt := s.now()
	entry := cache.Entry{Window: window, ComputedAt: computedAt}
	if err := s.cache.Set(ctx, assessmentID, entry); err != nil {
		// The memo is disposable; the computed result still stands.
		log.Printf(`{"level":"warn","msg":"cache write failed","assessment_id":%q,"error":%q}`, assessmentID, err.Error())
	}
	return window, computedAt, window.PeerCount, nil
}

// PeerProgress reports submission progress for one share token.
func (s *Service) PeerProgress(ctx context.Context, token string) (map[string]any, error) {
	link, err := s.store.GetLinkByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errLinkExpiredOrInvalid()
		}
		return nil, fmt.Errorf("resolve link: %w", err)
	}
	count, err := s.store.FeedbackCount(ctx, link.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	remaining := s.cfg.ReadyThreshold - count
	if remaining < 0 {
		remaining = 0
	}
	return map[string]any{
		"count":     count,
		"ready":     count >= s.cfg.ReadyThreshold,
		"remaining": remaining,
		"capacity":  link.MaxPeers,
		"expired":   !s.now().Before(link.ExpiresAt),
		"expiresAt": link.ExpiresAt.UTC(),
	}, nil
}

// ListMyAssessments returns the owner's assessments with progress.
func (s *Service) ListMyAssessments(ctx context.Context, ownerUserID string) ([]map[string]any, error) {
	assessments, err := s.store.ListAssessmentsByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	items := make([]map[string]any, 0, len(assessments))
	for _, assessment := range assessments {
		item := map[string]any{
			"assessmentId": assessment.ID,
			"adjectives":   assessment.Adjectives,
			"createdAt":    assessment.CreatedAt.UTC(),
		}
		if count, err := s.store.FeedbackCount(ctx, assessment.ID); err == nil {
			item["peerCount"] = count
			item["ready"] = count >= s.cfg.ReadyThreshold
		}
		if link, err := s.store.GetLinkByAssessment(ctx, assessment.ID); err == nil {
			item["linkExpiresAt"] = link.ExpiresAt.UTC()
			item["linkExpired"] = !s.now().Before(link.ExpiresAt)
		}
		items = append(items, item)
	}
	return items, nil
}

// ExportPDF renders the assessment's window as a PDF report.
func (s *Service) ExportPDF(ctx context.Context, assessmentID string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not configured", nil)
	}
	window, computedAt, _, err := s.aggregateWindow(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	ownerName := "Anonymous"
	if assessment, err := s.store.GetAssessment(ctx, assessmentID); err == nil && assessment.OwnerUserID != "" {
		if owner, err := s.store.GetUserByID(ctx, assessment.OwnerUserID); err == nil {
			ownerName = owner.DisplayName
		}
	}

	report := export.BuildReport(assessmentID, ownerName, window, computedAt)
	return s.exporter.ExportPDF(ctx, report)
}

// RunCleanupSweep deletes assessments whose link expired past the retention
// window and repairs orphaned child rows. Per-assessment failures are
// logged and skipped; the sweep is idempotent.
func (s *Service) RunCleanupSweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.RetentionAfter)
	ids, err := s.store.ListExpiredAssessmentIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired assessments: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if err := s.store.DeleteAssessment(ctx, id); err != nil {
			log.Printf(`{"level":"warn","msg":"cleanup delete failed","assessment_id":%q,"error":%q}`, id, err.Error())
			continue
		}
		if err := s.cache.Invalidate(ctx, id); err != nil {
			log.Printf(`{"level":"warn","msg":"cleanup cache invalidation failed","assessment_id":%q,"error":%q}`, id, err.Error())
		}
		deleted++
	}

	orphans, err := s.store.DeleteOrphans(ctx)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"orphan sweep failed","error":%q}`, err.Error())
	} else if orphans > 0 {
		log.Printf(`{"level":"info","msg":"orphan rows removed","count":%d}`, orphans)
	}

	return deleted, nil
}
