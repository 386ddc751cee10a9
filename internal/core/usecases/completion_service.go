package usecases

import (
	"context"
	"fmt"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/ports"
)

// CompletionService records experience completions and answers history
// queries.
type CompletionService struct {
	completions ports.CompletionRepository
	notifier    ports.NotificationService
}

// NewCompletionService creates a new CompletionService.
func NewCompletionService(completions ports.CompletionRepository, notifier ports.NotificationService) *CompletionService {
	return &CompletionService{completions: completions, notifier: notifier}
}

// Record persists a completion and returns the effective record. At
// most one completion per session; a repeated delivery of the same
// event returns the record already on file.
func (s *CompletionService) Record(ctx context.Context, comp *domain.Completion) (*domain.Completion, error) {
	if existing, err := s.completions.GetBySession(ctx, comp.SessionID); err == nil && existing != nil {
		return existing, nil
	}
	if err := s.completions.Insert(ctx, comp); err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	return comp, nil
}

// AwardProgress marks the completion as counted towards the device's
// heritage progress.
func (s *CompletionService) AwardProgress(ctx context.Context, completionID string) error {
	if err := s.completions.MarkProgressAwarded(ctx, completionID); err != nil {
		return fmt.Errorf("mark progress awarded: %w", err)
	}
	return nil
}

// Revoke removes a completion record. Used to unwind a partially
// applied completion when a later step fails.
func (s *CompletionService) Revoke(ctx context.Context, completionID string) error {
	return s.completions.Delete(ctx, completionID)
}

// Notify sends a push acknowledging the completion.
func (s *CompletionService) Notify(ctx context.Context, comp *domain.Completion) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.SendPush(ctx, comp.DeviceID,
		"Esperientzia osatuta!",
		fmt.Sprintf("You completed an experience after %.0f seconds.", comp.EngagedFor.Seconds()),
	)
}

// History returns a device's most recent completions.
func (s *CompletionService) History(ctx context.Context, deviceID string, limit int) ([]domain.Completion, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.completions.ListByDevice(ctx, deviceID, limit)
}
