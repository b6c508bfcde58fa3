package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/codetrail/codetrail/internal/logger"
)

// Sensitivity controls how aggressive the detection thresholds are.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// QuietHours is a clock-time window during which background drains are
// deferred. Start and End are hours in [0,24); a window may wrap midnight.
type QuietHours struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Contains reports whether the given hour falls inside the window.
func (q QuietHours) Contains(hour int) bool {
	if q.Start == q.End {
		return false
	}
	if q.Start < q.End {
		return hour >= q.Start && hour < q.End
	}
	// wraps midnight
	return hour >= q.Start || hour < q.End
}

// Archive identifies where finalized sessions are stored remotely.
type Archive struct {
	Owner      string `yaml:"owner" json:"owner"`
	Repo       string `yaml:"repo" json:"repo"`
	Branch     string `yaml:"branch" json:"branch"`
	PathPrefix string `yaml:"path_prefix" json:"path_prefix"`
}

// Settings is the daemon configuration, loaded from
// ~/.codetrail/config.yaml with environment overrides on top.
type Settings struct {
	Port      int    `yaml:"port" json:"port"`
	AuthToken string `yaml:"auth_token" json:"-"`
	Workspace string `yaml:"workspace" json:"workspace"`

	AutoCorrelation bool        `yaml:"auto_correlation" json:"auto_correlation"`
	Sensitivity     Sensitivity `yaml:"sensitivity" json:"sensitivity"`

	MaxBackgroundOperations int         `yaml:"max_background_operations" json:"max_background_operations"`
	QuietHours              *QuietHours `yaml:"quiet_hours,omitempty" json:"quiet_hours,omitempty"`

	MaxInteractionsPerSession int `yaml:"max_interactions_per_session" json:"max_interactions_per_session"`
	MaxSessionHistory         int `yaml:"max_session_history" json:"max_session_history"`
	SessionTimeoutMinutes     int `yaml:"session_timeout_minutes" json:"session_timeout_minutes"`

	GitHubToken string  `yaml:"github_token" json:"-"`
	Archive     Archive `yaml:"archive" json:"archive"`
}

// Defaults returns the baseline settings before any file or env override.
func Defaults() *Settings {
	workspace, err := os.Getwd()
	if err != nil {
		workspace = "."
	}
	return &Settings{
		Port:                      6280,
		Workspace:                 workspace,
		AutoCorrelation:           true,
		Sensitivity:               SensitivityMedium,
		MaxBackgroundOperations:   5,
		MaxInteractionsPerSession: 100,
		MaxSessionHistory:         50,
		SessionTimeoutMinutes:     30,
	}
}

// Load reads settings from the config file (if present) and applies
// environment overrides. A missing file is not an error.
func Load() (*Settings, error) {
	settings := Defaults()

	path := configPath()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		logger.Debugf("📄 Loaded config from %s", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(settings)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate rejects settings the pipeline cannot run with.
func (s *Settings) Validate() error {
	switch s.Sensitivity {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
	case "":
		s.Sensitivity = SensitivityMedium
	default:
		return fmt.Errorf("invalid sensitivity %q (want low, medium or high)", s.Sensitivity)
	}
	if s.MaxBackgroundOperations < 1 {
		return fmt.Errorf("max_background_operations must be positive, got %d", s.MaxBackgroundOperations)
	}
	if s.MaxInteractionsPerSession < 1 {
		return fmt.Errorf("max_interactions_per_session must be positive, got %d", s.MaxInteractionsPerSession)
	}
	if s.SessionTimeoutMinutes < 1 {
		return fmt.Errorf("session_timeout_minutes must be positive, got %d", s.SessionTimeoutMinutes)
	}
	if q := s.QuietHours; q != nil {
		if q.Start < 0 || q.Start > 23 || q.End < 0 || q.End > 23 {
			return fmt.Errorf("quiet_hours must use hours in [0,23], got %d-%d", q.Start, q.End)
		}
	}
	return nil
}

// ThresholdScale maps sensitivity to a multiplier applied to detection
// thresholds. Low sensitivity raises thresholds, high lowers them.
func (s *Settings) ThresholdScale() float64 {
	switch s.Sensitivity {
	case SensitivityLow:
		return 1.25
	case SensitivityHigh:
		return 0.8
	default:
		return 1.0
	}
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("CODETRAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			settings.Port = port
		} else {
			logger.Warnf("⚠️  Ignoring invalid CODETRAIL_PORT %q", v)
		}
	}
	if v := os.Getenv("CODETRAIL_TOKEN"); v != "" {
		settings.AuthToken = v
	}
	if v := os.Getenv("CODETRAIL_WORKSPACE"); v != "" {
		settings.Workspace = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		settings.GitHubToken = v
	}
	if v := os.Getenv("CODETRAIL_SENSITIVITY"); v != "" {
		settings.Sensitivity = Sensitivity(strings.ToLower(v))
	}
}

func configPath() string {
	if v := os.Getenv("CODETRAIL_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".codetrail", "config.yaml")
}
