// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/job-tracker/internal/pipeline"
	"github.com/jonathan/job-tracker/internal/scheduler"
	"github.com/jonathan/job-tracker/internal/types"
)

// Config represents the tracker configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
// Values may reference environment variables as ${VAR}.
type Config struct {
	// Storage (exactly one backend)
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL
	SQLitePath  string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`   // Local SQLite file

	// Model
	APIKey               string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Gemini API key
	LLMRequestsPerMinute int    `json:"llm_requests_per_minute,omitempty" yaml:"llm_requests_per_minute,omitempty"`

	// Pipeline thresholds
	LookbackDays        int     `json:"lookback_days,omitempty" yaml:"lookback_days,omitempty"`
	ReviewThreshold     float64 `json:"review_threshold,omitempty" yaml:"review_threshold,omitempty"`
	AutoUpdateThreshold float64 `json:"auto_update_threshold,omitempty" yaml:"auto_update_threshold,omitempty"`
	MatchThreshold      float64 `json:"match_threshold,omitempty" yaml:"match_threshold,omitempty"`
	DecayWindowDays     int     `json:"decay_window_days,omitempty" yaml:"decay_window_days,omitempty"`
	KeywordConfidence   float64 `json:"keyword_confidence,omitempty" yaml:"keyword_confidence,omitempty"`
	OfferStatus         string  `json:"offer_status,omitempty" yaml:"offer_status,omitempty"` // "offer" or "hired"
	EmailTimeoutSeconds int     `json:"email_timeout_seconds,omitempty" yaml:"email_timeout_seconds,omitempty"`

	// Worker
	SyncIntervalMinutes int    `json:"sync_interval_minutes,omitempty" yaml:"sync_interval_minutes,omitempty"`
	WorkerConcurrency   int    `json:"worker_concurrency,omitempty" yaml:"worker_concurrency,omitempty"`
	LockPath            string `json:"lock_path,omitempty" yaml:"lock_path,omitempty"`

	// Server
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Gmail OAuth client
	GoogleClientID     string `json:"google_client_id,omitempty" yaml:"google_client_id,omitempty"`
	GoogleClientSecret string `json:"google_client_secret,omitempty" yaml:"google_client_secret,omitempty"`
	GoogleRedirectURL  string `json:"google_redirect_url,omitempty" yaml:"google_redirect_url,omitempty"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"` // Print detailed debug information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	p := pipeline.DefaultConfig()
	s := scheduler.DefaultConfig()
	return Config{
		LLMRequestsPerMinute: 60,
		LookbackDays:         p.LookbackDays,
		ReviewThreshold:      p.ReviewThreshold,
		AutoUpdateThreshold:  p.Status.AutoUpdateThreshold,
		MatchThreshold:       p.Match.MinScore,
		DecayWindowDays:      p.Match.WindowDays,
		KeywordConfidence:    p.Classify.KeywordConfidence,
		OfferStatus:          string(p.Status.OfferStatus),
		EmailTimeoutSeconds:  int(p.EmailTimeout / time.Second),
		SyncIntervalMinutes:  int(s.Interval / time.Minute),
		WorkerConcurrency:    s.Concurrency,
		LockPath:             scheduler.DefaultLockPath(),
		Port:                 8080,
	}
}

// LoadConfig loads configuration from a JSON or YAML file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		return fmt.Errorf("config error: 'database_url' and 'sqlite_path' are mutually exclusive")
	}

	for name, v := range map[string]float64{
		"review_threshold":      c.ReviewThreshold,
		"auto_update_threshold": c.AutoUpdateThreshold,
		"match_threshold":       c.MatchThreshold,
		"keyword_confidence":    c.KeywordConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config error: '%s' must be between 0 and 1, got %v", name, v)
		}
	}

	for name, v := range map[string]int{
		"lookback_days":           c.LookbackDays,
		"decay_window_days":       c.DecayWindowDays,
		"email_timeout_seconds":   c.EmailTimeoutSeconds,
		"sync_interval_minutes":   c.SyncIntervalMinutes,
		"worker_concurrency":      c.WorkerConcurrency,
		"llm_requests_per_minute": c.LLMRequestsPerMinute,
		"port":                    c.Port,
	} {
		if v < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}

	if c.OfferStatus != "" {
		st, err := types.ParseStatus(c.OfferStatus)
		if err != nil || (st != types.StatusOffer && st != types.StatusHired) {
			return fmt.Errorf("config error: 'offer_status' must be 'offer' or 'hired', got %q", c.OfferStatus)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" && result.SQLitePath == "" {
		result.DatabaseURL = defaults.DatabaseURL
		result.SQLitePath = defaults.SQLitePath
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.OfferStatus == "" {
		result.OfferStatus = defaults.OfferStatus
	}
	if result.LockPath == "" {
		result.LockPath = defaults.LockPath
	}
	if result.GoogleClientID == "" {
		result.GoogleClientID = defaults.GoogleClientID
	}
	if result.GoogleClientSecret == "" {
		result.GoogleClientSecret = defaults.GoogleClientSecret
	}
	if result.GoogleRedirectURL == "" {
		result.GoogleRedirectURL = defaults.GoogleRedirectURL
	}

	// Numeric fields: use default if zero
	if result.LLMRequestsPerMinute == 0 {
		result.LLMRequestsPerMinute = defaults.LLMRequestsPerMinute
	}
	if result.LookbackDays == 0 {
		result.LookbackDays = defaults.LookbackDays
	}
	if result.ReviewThreshold == 0 {
		result.ReviewThreshold = defaults.ReviewThreshold
	}
	if result.AutoUpdateThreshold == 0 {
		result.AutoUpdateThreshold = defaults.AutoUpdateThreshold
	}
	if result.MatchThreshold == 0 {
		result.MatchThreshold = defaults.MatchThreshold
	}
	if result.DecayWindowDays == 0 {
		result.DecayWindowDays = defaults.DecayWindowDays
	}
	if result.KeywordConfidence == 0 {
		result.KeywordConfidence = defaults.KeywordConfidence
	}
	if result.EmailTimeoutSeconds == 0 {
		result.EmailTimeoutSeconds = defaults.EmailTimeoutSeconds
	}
	if result.SyncIntervalMinutes == 0 {
		result.SyncIntervalMinutes = defaults.SyncIntervalMinutes
	}
	if result.WorkerConcurrency == 0 {
		result.WorkerConcurrency = defaults.WorkerConcurrency
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ToPipelineConfig converts the file settings into orchestrator settings.
// Zero values keep the pipeline defaults.
func (c *Config) ToPipelineConfig() pipeline.Config {
	p := pipeline.DefaultConfig()
	if c.LookbackDays > 0 {
		p.LookbackDays = c.LookbackDays
	}
	if c.ReviewThreshold > 0 {
		p.ReviewThreshold = c.ReviewThreshold
	}
	if c.AutoUpdateThreshold > 0 {
		p.Status.AutoUpdateThreshold = c.AutoUpdateThreshold
	}
	if c.MatchThreshold > 0 {
		p.Match.MinScore = c.MatchThreshold
	}
	if c.DecayWindowDays > 0 {
		p.Match.WindowDays = c.DecayWindowDays
	}
	if c.KeywordConfidence > 0 {
		p.Classify.KeywordConfidence = c.KeywordConfidence
	}
	if st, err := types.ParseStatus(c.OfferStatus); err == nil && (st == types.StatusOffer || st == types.StatusHired) {
		p.Status.OfferStatus = st
	}
	if c.EmailTimeoutSeconds > 0 {
		p.EmailTimeout = time.Duration(c.EmailTimeoutSeconds) * time.Second
	}
	return p
}

// ToSchedulerConfig converts the file settings into worker settings.
func (c *Config) ToSchedulerConfig() scheduler.Config {
	s := scheduler.DefaultConfig()
	if c.SyncIntervalMinutes > 0 {
		s.Interval = time.Duration(c.SyncIntervalMinutes) * time.Minute
	}
	if c.WorkerConcurrency > 0 {
		s.Concurrency = c.WorkerConcurrency
	}
	s.LookbackDays = c.LookbackDays
	return s
}
