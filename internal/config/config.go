package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"trainload/internal/stress"
)

// Config represents the application configuration
type Config struct {
	Platform PlatformConfig `json:"platform"`
	Athlete  AthleteConfig  `json:"athlete"`
	Learning LearningConfig `json:"learning"`
}

// PlatformConfig holds activity platform API credentials
type PlatformConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// AthleteConfig holds the athlete's threshold settings. A zero value
// means the threshold is unknown and scoring strategies that need it
// are skipped.
type AthleteConfig struct {
	FTP               float64 `json:"ftp_watts"`
	RunningFTP        float64 `json:"running_ftp_watts"`
	ThresholdPaceRun  float64 `json:"threshold_pace_run"`  // sec per km
	ThresholdPaceSwim float64 `json:"threshold_pace_swim"` // sec per km
	ThresholdHR       float64 `json:"threshold_hr"`
	MaxHR             float64 `json:"max_hr"`
}

// LearningConfig holds the self-calibration settings
type LearningConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	enabled := true
	return Config{
		Athlete: AthleteConfig{
			ThresholdHR: 165,
			MaxHR:       185,
		},
		Learning: LearningConfig{
			Enabled: &enabled,
		},
	}
}

// LearningEnabled reports whether self-calibration should run.
// Defaults to true when unset.
func (c *Config) LearningEnabled() bool {
	if c.Learning.Enabled == nil {
		return true
	}
	return *c.Learning.Enabled
}

// Load reads the configuration from ~/.trainload/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Athlete.ThresholdHR == 0 {
		cfg.Athlete.ThresholdHR = defaults.Athlete.ThresholdHR
	}
	if cfg.Athlete.MaxHR == 0 {
		cfg.Athlete.MaxHR = defaults.Athlete.MaxHR
	}
	if cfg.Learning.Enabled == nil {
		cfg.Learning.Enabled = defaults.Learning.Enabled
	}

	return &cfg, nil
}

// Save writes the configuration to ~/.trainload/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	enabled := true
	example := Config{
		Platform: PlatformConfig{
			ClientID:     "YOUR_CLIENT_ID",
			ClientSecret: "YOUR_CLIENT_SECRET",
		},
		Athlete: AthleteConfig{
			FTP:              250,
			ThresholdPaceRun: 270,
			ThresholdHR:      165,
			MaxHR:            185,
		},
		Learning: LearningConfig{
			Enabled: &enabled,
		},
	}

	return Save(&example)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Platform.ClientID == "" || c.Platform.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("platform.client_id is required - get it from your platform's API settings")
	}
	if c.Platform.ClientSecret == "" || c.Platform.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("platform.client_secret is required - get it from your platform's API settings")
	}

	if c.Athlete.FTP < 0 {
		return fmt.Errorf("athlete.ftp_watts must not be negative, got %v", c.Athlete.FTP)
	}
	if c.Athlete.ThresholdPaceRun < 0 {
		return fmt.Errorf("athlete.threshold_pace_run must not be negative, got %v", c.Athlete.ThresholdPaceRun)
	}

	// Validate threshold_hr < max_hr when both are set
	if c.Athlete.ThresholdHR > 0 && c.Athlete.MaxHR > 0 && c.Athlete.ThresholdHR >= c.Athlete.MaxHR {
		return fmt.Errorf("athlete.threshold_hr (%v) must be less than athlete.max_hr (%v)", c.Athlete.ThresholdHR, c.Athlete.MaxHR)
	}

	return nil
}

// Thresholds converts the athlete settings into the scorer's threshold
// set. Zero means the threshold is unknown.
func (c *Config) Thresholds() stress.Thresholds {
	return stress.Thresholds{
		FTP:               c.Athlete.FTP,
		RunningFTP:        c.Athlete.RunningFTP,
		ThresholdPaceRun:  c.Athlete.ThresholdPaceRun,
		ThresholdPaceSwim: c.Athlete.ThresholdPaceSwim,
		ThresholdHR:       c.Athlete.ThresholdHR,
	}
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".trainload", "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".trainload"), nil
}
