package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "ankora", DBName: "ankora", SSLMode: "disable"},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
		Valkey:   ValkeyConfig{Addr: "localhost:6379"},
		Positioning: PositioningConfig{
			WindowSize:          8,
			OutlierDistanceM:    25,
			OutlierWindowMs:     10000,
			StabilityToleranceM: 4,
			MinStableFixes:      3,
			TightAccuracyM:      10,
			AcceptableAccuracyM: 20,
			ExcellentAccuracyM:  5,
			GoodAccuracyM:       10,
			FairAccuracyM:       15,
		},
		Session: SessionConfig{MinEngagementMs: 5000, CloseGraceMs: 50, CoordinateScale: 1},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 0")
	}
}

func TestValidate_UnorderedQualityTiers(t *testing.T) {
	cfg := validConfig()
	cfg.Positioning.ExcellentAccuracyM = 20
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unordered thresholds")
	}
	if !strings.Contains(err.Error(), "quality thresholds") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidate_BadScale(t *testing.T) {
	cfg := validConfig()
	cfg.Session.CoordinateScale = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero coordinate scale")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "ankora", SSLMode: "disable"}
	want := "postgres://u:p@db:5432/ankora?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
