package workflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/ports"
	"github.com/ortziar/ankora/internal/core/usecases"
)

// ProgressActivities holds the activity implementations for the
// completion progress workflow.
type ProgressActivities struct {
	CompletionService *usecases.CompletionService
	Experiences       ports.ExperienceRepository
	Completions       ports.CompletionRepository
	Notifier          ports.NotificationService
}

// RecordCompletion persists the completion and returns its ID. Replays
// of an already-recorded session return the existing record.
func (a *ProgressActivities) RecordCompletion(ctx context.Context, comp *domain.Completion) (string, error) {
	recorded, err := a.CompletionService.Record(ctx, comp)
	if err != nil {
		return "", fmt.Errorf("record completion: %w", err)
	}
	return recorded.ID, nil
}

// GetExperienceTitle returns the title of an experience by ID.
func (a *ProgressActivities) GetExperienceTitle(ctx context.Context, experienceID string) (string, error) {
	exp, err := a.Experiences.GetByID(ctx, experienceID)
	if err != nil {
		return "", fmt.Errorf("get experience %s: %w", experienceID, err)
	}
	return exp.Title, nil
}

// AwardProgress marks the completion as counted toward the device's
// heritage trail progress.
func (a *ProgressActivities) AwardProgress(ctx context.Context, completionID string) error {
	if err := a.CompletionService.AwardProgress(ctx, completionID); err != nil {
		return fmt.Errorf("award progress: %w", err)
	}
	return nil
}

// SendCompletionPush notifies the device that the experience counted.
func (a *ProgressActivities) SendCompletionPush(ctx context.Context, deviceID, experienceTitle string, engaged time.Duration) error {
	if a.Notifier == nil {
		log.Printf("PUSH (no notifier) → device=%s experience=%q engaged=%s", deviceID, experienceTitle, engaged)
		return nil
	}
	title := "Esperientzia osatuta!"
	body := fmt.Sprintf("You completed %q. It now counts toward your heritage trail.", experienceTitle)
	return a.Notifier.SendPush(ctx, deviceID, title, body)
}

// RevokeCompletion removes a completion record (saga rollback).
func (a *ProgressActivities) RevokeCompletion(ctx context.Context, completionID string) error {
	if err := a.CompletionService.Revoke(ctx, completionID); err != nil {
		return fmt.Errorf("revoke completion %s: %w", completionID, err)
	}
	log.Printf("Completion %s revoked (saga rollback)", completionID)
	return nil
}
