package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-tracker/internal/types"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"database_url": "postgres://localhost/tracker",
		"lookback_days": 14,
		"review_threshold": 0.8,
		"offer_status": "hired",
		"verbose": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/tracker", cfg.DatabaseURL)
	assert.Equal(t, 14, cfg.LookbackDays)
	assert.Equal(t, 0.8, cfg.ReviewThreshold)
	assert.Equal(t, "hired", cfg.OfferStatus)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TRACKER_TEST_KEY", "secret-from-env")
	path := writeConfig(t, "config.yaml", `
sqlite_path: /tmp/tracker.db
api_key: ${TRACKER_TEST_KEY}
match_threshold: 0.6
worker_concurrency: 8
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tracker.db", cfg.SQLitePath)
	assert.Equal(t, "secret-from-env", cfg.APIKey)
	assert.Equal(t, 0.6, cfg.MatchThreshold)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.json", `{ invalid json }`))
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.yml", "lookback_days: [1, 2"))
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty is valid", cfg: Config{}},
		{name: "defaults are valid", cfg: Defaults()},
		{name: "both stores", cfg: Config{DatabaseURL: "postgres://x", SQLitePath: "x.db"}, wantErr: "mutually exclusive"},
		{name: "threshold above one", cfg: Config{ReviewThreshold: 1.5}, wantErr: "review_threshold"},
		{name: "negative threshold", cfg: Config{MatchThreshold: -0.1}, wantErr: "match_threshold"},
		{name: "negative lookback", cfg: Config{LookbackDays: -1}, wantErr: "lookback_days"},
		{name: "offer status hired", cfg: Config{OfferStatus: "hired"}},
		{name: "offer status invalid", cfg: Config{OfferStatus: "interviewing"}, wantErr: "offer_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{LookbackDays: 30, SQLitePath: "local.db"}
	merged := cfg.MergeWithDefaults(Config{
		DatabaseURL:     "postgres://default",
		LookbackDays:    7,
		ReviewThreshold: 0.7,
		Port:            8080,
	})

	assert.Equal(t, 30, merged.LookbackDays, "file value wins")
	assert.Equal(t, 0.7, merged.ReviewThreshold, "default fills the gap")
	assert.Equal(t, 8080, merged.Port)
	assert.Equal(t, "local.db", merged.SQLitePath)
	assert.Empty(t, merged.DatabaseURL, "an explicit store is not combined with the default one")
}

func TestToPipelineConfig(t *testing.T) {
	cfg := &Config{
		LookbackDays:        3,
		ReviewThreshold:     0.75,
		AutoUpdateThreshold: 0.85,
		MatchThreshold:      0.6,
		DecayWindowDays:     60,
		KeywordConfidence:   0.92,
		OfferStatus:         "hired",
		EmailTimeoutSeconds: 10,
	}

	p := cfg.ToPipelineConfig()
	assert.Equal(t, 3, p.LookbackDays)
	assert.Equal(t, 0.75, p.ReviewThreshold)
	assert.Equal(t, 0.85, p.Status.AutoUpdateThreshold)
	assert.Equal(t, 0.6, p.Match.MinScore)
	assert.Equal(t, 60, p.Match.WindowDays)
	assert.Equal(t, 0.92, p.Classify.KeywordConfidence)
	assert.Equal(t, types.StatusHired, p.Status.OfferStatus)
	assert.Equal(t, 10*time.Second, p.EmailTimeout)
}

func TestToPipelineConfig_ZeroKeepsDefaults(t *testing.T) {
	p := (&Config{}).ToPipelineConfig()
	assert.Equal(t, 7, p.LookbackDays)
	assert.Equal(t, 0.7, p.Status.AutoUpdateThreshold)
	assert.Equal(t, 0.5, p.Match.MinScore)
	assert.Equal(t, 90, p.Match.WindowDays)
	assert.Equal(t, types.StatusOffer, p.Status.OfferStatus)
}

func TestToSchedulerConfig(t *testing.T) {
	s := (&Config{SyncIntervalMinutes: 5, WorkerConcurrency: 2, LookbackDays: 3}).ToSchedulerConfig()
	assert.Equal(t, 5*time.Minute, s.Interval)
	assert.Equal(t, 2, s.Concurrency)
	assert.Equal(t, 3, s.LookbackDays)

	s = (&Config{}).ToSchedulerConfig()
	assert.Equal(t, 15*time.Minute, s.Interval)
	assert.Equal(t, 4, s.Concurrency)
}
