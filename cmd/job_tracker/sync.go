package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/observability"
	"github.com/jonathan/job-tracker/internal/pipeline"
	"github.com/jonathan/job-tracker/internal/types"
)

var (
	syncUser     string
	syncLookback int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync one user's mailbox",
	Long: `Fetch recent email from the user's connected mailbox, classify each new message,
match it to a tracked application and apply status transitions.

Interrupting the command stops after the email in progress; the next run resumes from
the last successful sync.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncUser, "user", "", "User ID (required)")
	syncCmd.Flags().IntVar(&syncLookback, "lookback", 0, "Days of email to scan (defaults to config lookback_days)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserFlag(syncUser)
	if err != nil {
		return err
	}
	if syncLookback < 0 {
		return fmt.Errorf("--lookback must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.service
	if a.cfg.Verbose {
		svc = svc.WithProgress(func(ev pipeline.ProgressEvent) {
			_, _ = fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Step, ev.Message)
		})
	}

	summary := svc.SyncUserEmails(ctx, userID, syncLookback)
	observability.NewPrinter(os.Stdout).PrintSyncSummary(summary)

	switch summary.Outcome {
	case types.OutcomeAuthError:
		return fmt.Errorf("mailbox authorization failed; reconnect the account: %s", summary.ErrorMessage)
	case types.OutcomeConnectionError:
		return fmt.Errorf("mailbox unreachable: %s", summary.ErrorMessage)
	}
	return nil
}
