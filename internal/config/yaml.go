package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CameraSettings describes one camera entry in the optional settings file,
// following the nested-struct-per-concern shape of
// lkumar3-iitr-Sensor-Logger's sensors.yaml loader.
type CameraSettings struct {
	ID  string `yaml:"id"`
	FPS int    `yaml:"fps"`
}

// Settings is the optional per-stage YAML overlay. Only the fields it sets
// (non-nil pointers) are applied, and only when the corresponding
// environment variable was not itself set — env vars always win.
type Settings struct {
	Cameras          []CameraSettings `yaml:"cameras"`
	DefaultFPS       *int             `yaml:"default_fps"`
	RetentionSeconds *float64         `yaml:"retention_seconds"`
}

// LoadSettingsFile reads and parses a YAML settings file.
func LoadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return &s, nil
}

// ApplyDefaults layers the YAML-sourced values onto cfg wherever the
// matching environment variable was left unset. This keeps env vars as
// the source of truth while letting an operator-facing YAML file supply
// fallbacks for the knobs it knows about.
func (s *Settings) ApplyDefaults(cfg *SyncConfig) {
	if s == nil {
		return
	}
	if s.DefaultFPS != nil {
		if _, set := os.LookupEnv("SYNC_FPS"); !set {
			cfg.FPS = *s.DefaultFPS
		}
	}
	if s.RetentionSeconds != nil {
		if _, set := os.LookupEnv("RETENTION_TIME"); !set {
			cfg.RetentionTime = *s.RetentionSeconds
		}
	}
}
