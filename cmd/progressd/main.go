package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/ortziar/ankora/internal/adapters/nats"
	"github.com/ortziar/ankora/internal/adapters/postgres"
	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/usecases"
	"github.com/ortziar/ankora/internal/pkg/config"
	"github.com/ortziar/ankora/internal/pkg/logging"
	"github.com/ortziar/ankora/internal/workflows"
)

// progressd bridges the completion stream into Temporal: every
// completion event starts a ProgressWorkflow that records the
// completion, awards trail progress, and pushes a confirmation.
func main() {
	cfg, err := config.Load("ankora-progressd")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.ServiceSetup("progressd", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	completionRepo := postgres.NewCompletionRepo(db)
	experienceRepo := postgres.NewExperienceRepo(db)

	// Temporal
	hostPort := os.Getenv("TEMPORAL_ADDR")
	if hostPort == "" {
		hostPort = "localhost:7233"
	}
	c, err := client.Dial(client.Options{
		HostPort: hostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, "progress-queue", worker.Options{})
	w.RegisterWorkflow(workflows.ProgressWorkflow)
	w.RegisterActivity(&workflows.ProgressActivities{
		CompletionService: usecases.NewCompletionService(completionRepo, nil),
		Experiences:       experienceRepo,
		Completions:       completionRepo,
	})

	// Completion stream → workflow starts. The workflow ID is keyed on
	// the session so a redelivered event dedupes at the Temporal layer
	// as well.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeCompletions(ctx, func(ctx context.Context, comp *domain.Completion) error {
		opts := client.StartWorkflowOptions{
			ID:        "progress-" + comp.SessionID,
			TaskQueue: "progress-queue",
		}
		_, err := c.ExecuteWorkflow(ctx, opts, workflows.ProgressWorkflow, workflows.ProgressInput{
			Completion: *comp,
		})
		if err != nil {
			slog.Error("start progress workflow", "session_id", comp.SessionID, "error", err)
			return err
		}
		slog.Info("progress workflow started",
			"session_id", comp.SessionID,
			"experience_id", comp.ExperienceID,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe completions: %v", err)
	}

	slog.Info("progressd worker started", "temporal", hostPort)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
