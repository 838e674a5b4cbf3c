// Package main provides the entry point for the job tracker CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "job_tracker",
	Short: "Email-driven job application tracker",
	Long: `job_tracker reads recruiting email from Gmail or IMAP, classifies each message,
matches it to a tracked job application and moves the application's status forward.

Configuration can be loaded from a JSON or YAML file using --config. Command-line flags override config file values.`,
	SilenceUsage: true,
}

var (
	rootConfigPath  string
	rootDatabaseURL string
	rootSQLitePath  string
	rootAPIKey      string
	rootVerbose     bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootConfigPath, "config", "", "Path to a JSON or YAML config file (values can be overridden by other flags)")
	flags.StringVar(&rootDatabaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	flags.StringVar(&rootSQLitePath, "sqlite", "", "SQLite database file, used when no PostgreSQL URL is set")
	flags.StringVar(&rootAPIKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY env var)")
	flags.BoolVarP(&rootVerbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
