// Package config loads the synchronizer/bus/stage configuration the same
// way the teacher repo does: environment variables parsed via
// github.com/caarlos0/env/v9, with github.com/joho/godotenv/autoload
// seeding a local .env file in development, layered on top of an optional
// YAML settings file for operator-facing per-stage knobs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v9"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fieldloom/mcmot-sync/internal/model"
)

// SyncConfig mirrors spec.md §6's configuration table and
// original_source/mcmot/.../frame_sync_configuration.py's validation.
type SyncConfig struct {
	BacklogThreshold     int     `env:"BACKLOG_THRESHOLD" envDefault:"0"`
	BacklogCheckInterval float64 `env:"BACKLOG_CHECK_INTERVAL" envDefault:"0"`
	FrameSyncType        string  `env:"FRAME_SYNC_TYPE" envDefault:"timestamp"`
	FPS                  int     `env:"SYNC_FPS" envDefault:"0"`
	RetentionTime        float64 `env:"RETENTION_TIME" envDefault:"60"`
	LatencyThreshold     float64 `env:"LATENCY_THRESHOLD" envDefault:"60"`
	IgnoreInitialDelay   bool    `env:"IGNORE_INITIAL_DELAY" envDefault:"false"`
	EnableSequencing     bool    `env:"ENABLE_SEQUENCING" envDefault:"false"`
	SeekToEnd            bool    `env:"SEEK_TO_END" envDefault:"false"`
	Unify                bool    `env:"UNIFY" envDefault:"false"`
}

// Validate enforces the construction-time invariants from
// FrameSyncConfiguration's __init__ (spec.md §7 kind 1: ConfigurationError).
func (c SyncConfig) Validate() error {
	if c.FPS < 0 {
		return &model.ConfigurationError{Field: "fps", Reason: "must be >= 0"}
	}
	if c.LatencyThreshold < 0 {
		return &model.ConfigurationError{Field: "latency_threshold", Reason: "must be >= 0"}
	}
	if c.RetentionTime <= 0 {
		return &model.ConfigurationError{Field: "retention_time", Reason: "must be > 0"}
	}
	if c.BacklogCheckInterval < 0 {
		return &model.ConfigurationError{Field: "backlog_check_interval", Reason: "must be >= 0"}
	}
	if c.BacklogThreshold < 0 {
		return &model.ConfigurationError{Field: "backlog_threshold", Reason: "must be >= 0"}
	}
	if c.IgnoreInitialDelay && c.BacklogThreshold <= 0 && c.BacklogCheckInterval <= 0 {
		return &model.ConfigurationError{
			Field:  "ignore_initial_delay",
			Reason: "requires backlog_threshold or backlog_check_interval > 0",
		}
	}
	switch c.FrameSyncType {
	case "timestamp", "number", "none", "":
	default:
		return &model.ConfigurationError{
			Field:  "frame_sync_type",
			Reason: fmt.Sprintf("must be 'timestamp', 'number' or 'none', got %q", c.FrameSyncType),
		}
	}
	return nil
}

// BusConfig describes how to reach the message bus.
type BusConfig struct {
	Brokers     []string `env:"BUS_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic       string   `env:"BUS_TOPIC,required"`
	GroupID     string   `env:"BUS_GROUP_ID,required"`
	OffsetReset string   `env:"BUS_OFFSET_RESET" envDefault:"latest"`
}

// StageConfig names the running stage and where its grouped output is
// delivered downstream.
type StageConfig struct {
	Name         string `env:"STAGE_NAME,required"`
	DeliverURL   string `env:"DELIVER_URL"`
	SettingsPath string `env:"SETTINGS_FILE"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Config is the top-level process configuration.
type Config struct {
	Sync  SyncConfig
	Bus   BusConfig
	Stage StageConfig
}

// Load parses environment variables (after .env autoload) into a Config,
// fills sync fields whose environment variable is unset from an optional
// YAML settings file, then validates.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(&cfg.Sync); err != nil {
		return nil, fmt.Errorf("parse sync config: %w", err)
	}
	if err := env.Parse(&cfg.Bus); err != nil {
		return nil, fmt.Errorf("parse bus config: %w", err)
	}
	if err := env.Parse(&cfg.Stage); err != nil {
		return nil, fmt.Errorf("parse stage config: %w", err)
	}

	if cfg.Stage.SettingsPath != "" {
		overlay, err := LoadSettingsFile(cfg.Stage.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("load settings file: %w", err)
		}
		overlay.ApplyDefaults(&cfg.Sync)
	}

	if err := cfg.Sync.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
