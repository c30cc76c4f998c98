package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/replaybot/pkg/control"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "replaybot.json"

// Trace storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds the robot configuration
type Config struct {
	Arm       ArmConfig       `json:"arm" yaml:"arm"`
	Joystick  JoystickConfig  `json:"joystick" yaml:"joystick"`
	Trace     TraceConfig     `json:"trace" yaml:"trace"`
	PeriodMs  int             `json:"period_ms" yaml:"period_ms"`
	SessionMs int             `json:"session_ms" yaml:"session_ms"`
	Tuning    *control.Tuning `json:"tuning,omitempty" yaml:"tuning,omitempty"`
}

// ArmConfig holds configuration for the lift arm servo
type ArmConfig struct {
	Port        string         `json:"port,omitempty" yaml:"port,omitempty"`
	Calibration ArmCalibration `json:"calibration" yaml:"calibration"`
}

// JoystickConfig selects the driver's controller and its layout
type JoystickConfig struct {
	Device     string         `json:"device,omitempty" yaml:"device,omitempty"`
	LeftYAxis  int            `json:"left_y_axis" yaml:"left_y_axis"`
	RightXAxis int            `json:"right_x_axis" yaml:"right_x_axis"`
	Buttons    map[string]int `json:"buttons,omitempty" yaml:"buttons,omitempty"`
}

// TraceConfig selects where recordings are stored
type TraceConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	Path    string `json:"path" yaml:"path"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Joystick: JoystickConfig{
			LeftYAxis:  1,
			RightXAxis: 3,
		},
		Trace: TraceConfig{
			Backend: BackendFile,
			Path:    "recording.txt",
		},
		PeriodMs:  20,
		SessionMs: 60_000,
	}
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return a.Calibration.IsCalibrated()
}

// Period returns the control loop period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// SessionLength returns the length of a recording session.
func (c *Config) SessionLength() time.Duration {
	return time.Duration(c.SessionMs) * time.Millisecond
}

// ControlTuning returns the configured tuning, or the defaults.
func (c *Config) ControlTuning() control.Tuning {
	if c.Tuning == nil {
		return control.DefaultTuning()
	}
	return *c.Tuning
}

// LoadConfigFrom loads configuration from a specific file. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON. Fields missing
// from the file keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would stop the controller from running.
func (c *Config) Validate() error {
	if c.PeriodMs <= 0 {
		return fmt.Errorf("period_ms must be positive, got %d", c.PeriodMs)
	}
	if c.SessionMs < c.PeriodMs {
		return fmt.Errorf("session_ms (%d) must be at least period_ms (%d)", c.SessionMs, c.PeriodMs)
	}
	switch c.Trace.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown trace backend %q", c.Trace.Backend)
	}
	return nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
