package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/classify"
	"github.com/jonathan/job-tracker/internal/config"
	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/llm"
	"github.com/jonathan/job-tracker/internal/mail"
	"github.com/jonathan/job-tracker/internal/pipeline"
	"github.com/jonathan/job-tracker/internal/scheduler"
	"github.com/jonathan/job-tracker/internal/secrets"
	"github.com/jonathan/job-tracker/internal/server"
	"github.com/jonathan/job-tracker/internal/sqlitestore"
	"github.com/jonathan/job-tracker/internal/types"
)

const defaultSQLitePath = "job-tracker.db"

// appStore is everything the commands need from either backend.
type appStore interface {
	server.Store
	scheduler.Store
	mail.ConnectionStore
}

// app holds the wired components shared by the commands.
type app struct {
	cfg     config.Config
	store   appStore
	service *pipeline.Service
	router  *mail.Router
	imap    *mail.IMAPProvider
	tokens  *mail.SealedTokenStore
	closers []func()
}

// loadConfig reads --config, applies explicitly set flags and env fallbacks,
// then fills defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if rootConfigPath != "" {
		loaded, err := config.LoadConfig(rootConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
		if rootVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", rootConfigPath)
		}
	}

	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = rootDatabaseURL
		cfg.SQLitePath = ""
	}
	if cmd.Flags().Changed("sqlite") {
		cfg.SQLitePath = rootSQLitePath
		cfg.DatabaseURL = ""
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = rootAPIKey
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = rootVerbose
	}

	env := config.Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		APIKey:             os.Getenv("GEMINI_API_KEY"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
	}
	cfg = cfg.MergeWithDefaults(env)

	defaults := config.Defaults()
	cfg = cfg.MergeWithDefaults(defaults)
	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		cfg.SQLitePath = defaultSQLitePath
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openStore connects to PostgreSQL when a URL is configured and to the
// SQLite file otherwise.
func openStore(ctx context.Context, cfg config.Config) (appStore, func(), error) {
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return database, database.Close, nil
	}

	store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("[store] Failed to close %s: %v", cfg.SQLitePath, err)
		}
	}, nil
}

// newClassifier builds the keyword + model pipeline, or keyword-only without an API key.
func newClassifier(ctx context.Context, cfg config.Config) (*classify.Pipeline, func(), error) {
	classifyCfg := cfg.ToPipelineConfig().Classify
	if cfg.APIKey == "" {
		log.Printf("[classify] No API key configured; using keyword classification only")
		return classify.NewPipeline(nil, classifyCfg), func() {}, nil
	}

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	throttled := llm.NewThrottledClient(client, cfg.LLMRequestsPerMinute, 5)
	model := classify.NewLLMClassifier(throttled, classify.DefaultLLMOptions())
	return classify.NewPipeline(model, classifyCfg), func() { _ = client.Close() }, nil
}

// newApp opens the store and wires mail providers, classifier and pipeline.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	a.imap = mail.NewIMAPProvider(store, secrets.GetIMAPPassword, mail.IMAPOptions{})
	providers := map[types.MailProviderKind]mail.Provider{types.ProviderIMAP: a.imap}

	if cfg.GoogleClientID != "" {
		sealer, err := secrets.NewSealerFromEnv()
		if err != nil {
			log.Printf("[mail] Gmail disabled: %v", err)
		} else {
			a.tokens = mail.NewSealedTokenStore(store, sealer)
			oauthCfg := mail.GoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
			providers[types.ProviderGmail] = mail.NewGmailProvider(oauthCfg, a.tokens, mail.GmailOptions{})
		}
	}
	a.router = mail.NewRouter(store, providers)

	classifier, closeClassifier, err := newClassifier(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeClassifier)

	a.service = pipeline.NewService(store, a.router, classifier, cfg.ToPipelineConfig())
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// parseUserFlag parses a required --user value.
func parseUserFlag(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("--user is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: %w", value, err)
	}
	return id, nil
}
