package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	natsadapter "github.com/ortziar/ankora/internal/adapters/nats"
	"github.com/ortziar/ankora/internal/adapters/postgres"
	"github.com/ortziar/ankora/internal/adapters/valkey"
	"github.com/ortziar/ankora/internal/core/domain"
	"github.com/ortziar/ankora/internal/core/ports"
	"github.com/ortziar/ankora/internal/core/usecases"
	"github.com/ortziar/ankora/internal/pkg/config"
	"github.com/ortziar/ankora/internal/pkg/logging"
	"github.com/ortziar/ankora/internal/pkg/metrics"
)

// locationd consumes the durable fix stream and runs each fix through
// the position filter. Gateways that speak NATS rather than HTTP (fixed
// site beacons, fleet relays) land here; stabilized positions come out
// on the same subjects the API publishes to, so WebSocket clients see
// one merged feed.
func main() {
	cfg, err := config.Load("ankora-locationd")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := logging.ServiceSetup("locationd", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database for fix persistence
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	fixRepo := postgres.NewFixRepo(db)

	// Cache for last-known positions
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, last-known positions not cached", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// Publisher for stabilized positions
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	// Subscriber for the durable fix stream
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	managerCfg := usecases.SessionManagerConfig{
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
		CoordinateScale: cfg.Session.CoordinateScale,
		ElevationBaseM:  cfg.Session.ElevationBaseM,
	}
	sessions := usecases.NewSessionManager(managerCfg, ports.RealClock{}, pub, fixRepo, logger)

	// Track which devices currently hold a stable position so the
	// gauge reflects transitions in both directions.
	var stableMu sync.Mutex
	stableDevices := make(map[string]bool)

	err = sub.SubscribeFixes(ctx, func(ctx context.Context, deviceID string, fix *domain.GeoFix) error {
		metrics.FixesIngested.WithLabelValues("stream").Inc()
		pos, err := sessions.IngestFix(ctx, deviceID, *fix)
		if err != nil {
			return err
		}

		stableMu.Lock()
		if pos.Stable != stableDevices[deviceID] {
			if pos.Stable {
				metrics.StableDevices.Inc()
			} else {
				metrics.StableDevices.Dec()
			}
			stableDevices[deviceID] = pos.Stable
		}
		stableMu.Unlock()

		// Last-known position for quick lookups without a filter replay
		if cache != nil {
			if data, err := json.Marshal(pos); err == nil {
				_ = cache.Set(ctx, valkey.LastPositionKey(deviceID), data, 3600)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe fixes: %v", err)
	}

	// Minimal HTTP surface for metrics and health probes
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/metrics", metrics.Handler())
	app.Get("/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "locationd"})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("locationd started", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig.String())
	cancel()
	_ = app.Shutdown()
}
