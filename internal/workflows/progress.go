package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ortziar/ankora/internal/core/domain"
)

// ProgressInput is the input for the completion progress workflow.
type ProgressInput struct {
	Completion domain.Completion
}

// ProgressWorkflow records a finished experience session, awards trail
// progress, and pushes a confirmation to the device. If awarding fails,
// the completion record is revoked (saga compensation) so the session
// can be replayed later.
func ProgressWorkflow(ctx workflow.Context, input ProgressInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting progress workflow",
		"sessionID", input.Completion.SessionID,
		"experienceID", input.Completion.ExperienceID,
	)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Record the completion (idempotent on session ID)
	var completionID string
	err := workflow.ExecuteActivity(ctx, "RecordCompletion", &input.Completion).Get(ctx, &completionID)
	if err != nil {
		return err
	}

	var title string
	_ = workflow.ExecuteActivity(ctx, "GetExperienceTitle", input.Completion.ExperienceID).Get(ctx, &title)

	// Step 2: Award trail progress
	err = workflow.ExecuteActivity(ctx, "AwardProgress", completionID).Get(ctx, nil)
	if err != nil {
		logger.Warn("progress award failed, rolling back", "error", err)
		// Compensate: revoke the completion so a retry starts clean
		_ = workflow.ExecuteActivity(ctx, "RevokeCompletion", completionID).Get(ctx, nil)
		return err
	}

	// Step 3: Push confirmation. Failure here is not fatal; the
	// completion already counts.
	err = workflow.ExecuteActivity(ctx, "SendCompletionPush",
		input.Completion.DeviceID, title, input.Completion.EngagedFor).Get(ctx, nil)
	if err != nil {
		logger.Warn("completion push failed", "error", err)
	}

	logger.Info("Progress awarded", "completionID", completionID)
	return nil
}
