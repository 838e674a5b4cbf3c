package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/config"
	"github.com/jonathan/job-tracker/internal/secrets"
	"github.com/jonathan/job-tracker/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes REST endpoints for syncing mailboxes, classifying
emails and managing tracked applications.

Bearer-token authentication is enabled when JWT_SECRET is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(context.Background(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jwtCfg, err := config.OptionalJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}

	port := a.cfg.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	cfg := server.Config{
		Port:               port,
		JWT:                jwtCfg,
		SetIMAPPassword:    secrets.SetIMAPPassword,
		DeleteIMAPPassword: secrets.DeleteIMAPPassword,
	}
	// A typed nil would make the interface non-nil
	if a.tokens != nil {
		cfg.Tokens = a.tokens
	}

	return server.New(cfg, a.store, a.service).Start()
}
