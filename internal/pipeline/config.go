package pipeline

import (
	"time"

	"github.com/jonathan/job-tracker/internal/classify"
	"github.com/jonathan/job-tracker/internal/matching"
	"github.com/jonathan/job-tracker/internal/status"
)

// Config holds the settings of the sync orchestrator and the stages it drives.
type Config struct {
	LookbackDays int
	// ReviewThreshold: classifications below it are flagged for review
	ReviewThreshold float64
	// EmailTimeout bounds the processing of one email, model call included
	EmailTimeout time.Duration
	FetchAttempts int
	FetchBackoff  time.Duration
	// WriteBackoff is the wait before the single retry of a failed event write
	WriteBackoff time.Duration
	// DefaultAutoUpdate applies when a user has no stored connection
	DefaultAutoUpdate bool

	Classify classify.Config
	Match    matching.Config
	Status   status.Config
}

// DefaultConfig returns the standard orchestrator settings.
func DefaultConfig() Config {
	return Config{
		LookbackDays:      7,
		ReviewThreshold:   0.7,
		EmailTimeout:      90 * time.Second,
		FetchAttempts:     3,
		FetchBackoff:      2 * time.Second,
		WriteBackoff:      500 * time.Millisecond,
		DefaultAutoUpdate: true,
		Classify:          classify.DefaultConfig(),
		Match:             matching.DefaultConfig(),
		Status:            status.DefaultConfig(),
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LookbackDays <= 0 {
		c.LookbackDays = def.LookbackDays
	}
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = def.ReviewThreshold
	}
	if c.EmailTimeout <= 0 {
		c.EmailTimeout = def.EmailTimeout
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = def.FetchAttempts
	}
	if c.FetchBackoff <= 0 {
		c.FetchBackoff = def.FetchBackoff
	}
	if c.WriteBackoff <= 0 {
		c.WriteBackoff = def.WriteBackoff
	}
	if c.Match.MinScore <= 0 {
		c.Match.MinScore = def.Match.MinScore
	}
	if c.Match.WindowDays <= 0 {
		c.Match.WindowDays = def.Match.WindowDays
	}
	if c.Match.Weights == (matching.Weights{}) {
		c.Match.Weights = def.Match.Weights
	}
	if c.Status.AutoUpdateThreshold <= 0 {
		c.Status.AutoUpdateThreshold = def.Status.AutoUpdateThreshold
	}
	return c
}
