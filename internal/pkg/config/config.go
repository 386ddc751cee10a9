package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Positioning PositioningConfig `mapstructure:"positioning"`
	Session     SessionConfig     `mapstructure:"session"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// PositioningConfig carries the tunable constants of the GPS filter.
// The quality tiers and stability bounds are product decisions, not domain
// law, so they live here rather than as code constants.
type PositioningConfig struct {
	WindowSize          int     `mapstructure:"window_size"`
	OutlierDistanceM    float64 `mapstructure:"outlier_distance_m"`
	OutlierWindowMs     int     `mapstructure:"outlier_window_ms"`
	StabilityToleranceM float64 `mapstructure:"stability_tolerance_m"`
	MinStableFixes      int     `mapstructure:"min_stable_fixes"`
	TightAccuracyM      float64 `mapstructure:"tight_accuracy_m"`
	AcceptableAccuracyM float64 `mapstructure:"acceptable_accuracy_m"`
	ExcellentAccuracyM  float64 `mapstructure:"excellent_accuracy_m"`
	GoodAccuracyM       float64 `mapstructure:"good_accuracy_m"`
	FairAccuracyM       float64 `mapstructure:"fair_accuracy_m"`
}

// SessionConfig carries the tunable constants of the experience lifecycle.
type SessionConfig struct {
	MinEngagementMs  int     `mapstructure:"min_engagement_ms"`
	CloseGraceMs     int     `mapstructure:"close_grace_ms"`
	CoordinateScale  float64 `mapstructure:"coordinate_scale"`
	ElevationBaseM   float64 `mapstructure:"elevation_base_m"`
	TestModeOverride bool    `mapstructure:"test_mode_override"`
}

func (s SessionConfig) MinEngagement() time.Duration {
	return time.Duration(s.MinEngagementMs) * time.Millisecond
}

func (s SessionConfig) CloseGrace() time.Duration {
	return time.Duration(s.CloseGraceMs) * time.Millisecond
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ankora")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ankora")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)

	v.SetDefault("positioning.window_size", 8)
	v.SetDefault("positioning.outlier_distance_m", 25.0)
	v.SetDefault("positioning.outlier_window_ms", 10000)
	v.SetDefault("positioning.stability_tolerance_m", 4.0)
	v.SetDefault("positioning.min_stable_fixes", 3)
	v.SetDefault("positioning.tight_accuracy_m", 10.0)
	v.SetDefault("positioning.acceptable_accuracy_m", 20.0)
	v.SetDefault("positioning.excellent_accuracy_m", 5.0)
	v.SetDefault("positioning.good_accuracy_m", 10.0)
	v.SetDefault("positioning.fair_accuracy_m", 15.0)

	v.SetDefault("session.min_engagement_ms", 5000)
	v.SetDefault("session.close_grace_ms", 50)
	v.SetDefault("session.coordinate_scale", 1.0)
	v.SetDefault("session.elevation_base_m", 0.0)
	v.SetDefault("session.test_mode_override", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ANKORA_POSITIONING_WINDOW_SIZE → positioning.window_size
	v.SetEnvPrefix("ANKORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Positioning.WindowSize < 2 {
		errs = append(errs, "positioning.window_size must be at least 2")
	}
	if c.Positioning.OutlierDistanceM <= 0 {
		errs = append(errs, "positioning.outlier_distance_m must be positive")
	}
	if c.Positioning.StabilityToleranceM <= 0 {
		errs = append(errs, "positioning.stability_tolerance_m must be positive")
	}
	if c.Positioning.MinStableFixes < 1 {
		errs = append(errs, "positioning.min_stable_fixes must be at least 1")
	}
	if c.Positioning.ExcellentAccuracyM > c.Positioning.GoodAccuracyM ||
		c.Positioning.GoodAccuracyM > c.Positioning.FairAccuracyM {
		errs = append(errs, "positioning quality thresholds must be ordered excellent <= good <= fair")
	}

	if c.Session.MinEngagementMs < 0 {
		errs = append(errs, "session.min_engagement_ms must not be negative")
	}
	if c.Session.CoordinateScale <= 0 {
		errs = append(errs, "session.coordinate_scale must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
