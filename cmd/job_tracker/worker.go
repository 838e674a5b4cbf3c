package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/scheduler"
)

var (
	workerOnce bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Periodically sync every connected mailbox",
	Long: `Run sync rounds over all users with sync enabled, on the configured interval.

Only one worker runs per lock file; a second instance exits immediately.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "Run a single round and exit")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	lock, err := scheduler.AcquireLock(a.cfg.LockPath)
	if err != nil {
		if errors.Is(err, scheduler.ErrLocked) {
			return fmt.Errorf("another worker holds %s", a.cfg.LockPath)
		}
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("[worker] Failed to release lock: %v", err)
		}
	}()

	w := scheduler.New(a.store, a.service, a.cfg.ToSchedulerConfig())
	if !workerOnce {
		return w.Run(ctx)
	}

	report, err := w.RunOnce(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "Synced %d users: %d completed, %d auth errors, %d failed; %d emails, %d status updates\n",
		report.Users, report.Completed, report.AuthErrors, report.Failed, report.EmailsSeen, report.StatusUpdate)
	return nil
}
