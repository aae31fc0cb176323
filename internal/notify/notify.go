// Package notify delivers the one-time "results ready" message to an
// assessment owner once enough peer feedback has arrived.
package notify

import (
	"context"
	"fmt"
	"log"

	"johari/api/internal/store"
)

// Sender is the outbound mail dependency. internal/email satisfies it.
type Sender interface {
	IsConfigured() bool
	SendResultsReadyEmail(to, ownerName string, peerCount int, resultsURL string) error
}

type Service struct {
	sender  Sender
	baseURL string
}

func NewService(sender Sender, baseURL string) *Service {
	return &Service{sender: sender, baseURL: baseURL}
}

func (s *Service) Configured() bool {
	return s.sender != nil && s.sender.IsConfigured()
}

// ResultsReady notifies the owner that their window can be computed.
// Anonymous owners and missing SMTP configuration are silent no-ops so the
// submission path never fails on notification concerns.
func (s *Service) ResultsReady(ctx context.Context, owner store.User, assessmentID string, peerCount int) error {
	if owner.Email == "" {
		return nil
	}
	if !s.Configured() {
		log.Printf(`{"level":"info","msg":"results-ready notification skipped, smtp not configured","assessment_id":%q}`, assessmentID)
		return nil
	}
	resultsURL := fmt.Sprintf("%s/results/%s", s.baseURL, assessmentID)
	return s.sender.SendResultsReadyEmail(owner.Email, owner.DisplayName, peerCount, resultsURL)
}
