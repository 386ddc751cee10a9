package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ortziar/ankora/internal/adapters/http"
	natsadapter "github.com/ortziar/ankora/internal/adapters/nats"
	"github.com/ortziar/ankora/internal/adapters/postgres"
	"github.com/ortziar/ankora/internal/adapters/valkey"
	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/ports"
	"github.com/ortziar/ankora/internal/core/usecases"
	"github.com/ortziar/ankora/internal/pkg/config"
	"github.com/ortziar/ankora/internal/pkg/logging"
	"github.com/ortziar/ankora/internal/pkg/telemetry"
)

func managerConfig(cfg *config.Config) usecases.SessionManagerConfig {
	return usecases.SessionManagerConfig{
		Filter: usecases.PositionFilterConfig{
			WindowSize:          cfg.Positioning.WindowSize,
			OutlierDistanceM:    cfg.Positioning.OutlierDistanceM,
			OutlierWindow:       time.Duration(cfg.Positioning.OutlierWindowMs) * time.Millisecond,
			StabilityToleranceM: cfg.Positioning.StabilityToleranceM,
			MinStableFixes:      cfg.Positioning.MinStableFixes,
			TightAccuracyM:      cfg.Positioning.TightAccuracyM,
			AcceptableAccuracyM: cfg.Positioning.AcceptableAccuracyM,
			Tiers: domain.QualityTiers{
				ExcellentM: cfg.Positioning.ExcellentAccuracyM,
				GoodM:      cfg.Positioning.GoodAccuracyM,
				FairM:      cfg.Positioning.FairAccuracyM,
			},
		},
		Experience: usecases.ExperienceConfig{
			MinEngagement: cfg.Session.MinEngagement(),
			CloseGrace:    cfg.Session.CloseGrace(),
		},
		CoordinateScale:  cfg.Session.CoordinateScale,
		ElevationBaseM:   cfg.Session.ElevationBaseM,
		TestModeOverride: cfg.Session.TestModeOverride,
	}
}

func main() {
	cfg, err := config.Load("ankora-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := logging.ServiceSetup("api", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	siteRepo := postgres.NewSiteRepo(db)
	experienceRepo := postgres.NewExperienceRepo(db)
	fixRepo := postgres.NewFixRepo(db)
	completionRepo := postgres.NewCompletionRepo(db)

	// Use cases. The nil checks keep a typed-nil adapter out of the
	// service interfaces when a backend is down.
	var publisher ports.EventPublisher
	if pub != nil {
		publisher = pub
	}
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	sessions := usecases.NewSessionManager(managerConfig(cfg), ports.RealClock{}, publisher, fixRepo, logger)
	catalog := usecases.NewCatalogService(siteRepo, experienceRepo, cacheSvc)
	completions := usecases.NewCompletionService(completionRepo, nil)

	deps := &http.Dependencies{
		Sessions:    sessions,
		Catalog:     catalog,
		Completions: completions,
		Publisher:   publisher,
		NATS:        natsConn,
		DB:          db,
		Cache:       cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Ankora API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.ankora.eus",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
