// Package scheduler runs periodic sync rounds for every connected user.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-tracker/internal/types"
)

// Store lists the connections due for sync and records revoked credentials.
type Store interface {
	ListSyncableConnections(ctx context.Context) ([]types.MailConnection, error)
	SetConnectionAuthorized(ctx context.Context, userID uuid.UUID, authorized bool) error
}

// Syncer runs one user's sync. *pipeline.Service satisfies it.
type Syncer interface {
	SyncUserEmails(ctx context.Context, userID uuid.UUID, lookbackDays int) *types.SyncSummary
}

// Config tunes the worker.
type Config struct {
	Interval     time.Duration
	Concurrency  int
	LookbackDays int // 0 uses the syncer default
}

// DefaultConfig returns the standard worker settings.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 4,
	}
}

// RoundReport summarizes one pass over all connections.
type RoundReport struct {
	Users        int                  `json:"users"`
	Completed    int                  `json:"completed"`
	AuthErrors   int                  `json:"auth_errors"`
	Failed       int                  `json:"failed"`
	EmailsSeen   int                  `json:"emails_seen"`
	StatusUpdate int                  `json:"status_updates"`
	Summaries    []*types.SyncSummary `json:"summaries"`
}

// Worker fans sync runs out across users with bounded concurrency.
type Worker struct {
	store  Store
	syncer Syncer
	cfg    Config
}

// New creates a worker.
func New(store Store, syncer Syncer, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Worker{store: store, syncer: syncer, cfg: cfg}
}

// Run executes a round immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[worker] Started (interval %v, concurrency %d)", w.cfg.Interval, w.cfg.Concurrency)
	w.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[worker] Stopping: %v", ctx.Err())
			return nil
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *Worker) runLogged(ctx context.Context) {
	report, err := w.RunOnce(ctx)
	if err != nil {
		log.Printf("[worker] Round failed: %v", err)
		return
	}
	log.Printf("[worker] Round done: users=%d completed=%d auth_errors=%d failed=%d emails=%d updates=%d",
		report.Users, report.Completed, report.AuthErrors, report.Failed, report.EmailsSeen, report.StatusUpdate)
}

// RunOnce syncs every sync-enabled, authorized connection once. Users whose
// credentials turn out to be revoked are marked unauthorized so later rounds skip them.
func (w *Worker) RunOnce(ctx context.Context) (*RoundReport, error) {
	conns, err := w.store.ListSyncableConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	report := &RoundReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	for _, conn := range conns {
		if !conn.SyncEnabled || !conn.IsAuthorized {
			continue
		}
		userID := conn.UserID
		report.Users++

		g.Go(func() error {
			summary := w.syncer.SyncUserEmails(gctx, userID, w.cfg.LookbackDays)

			if summary.Outcome == types.OutcomeAuthError {
				if err := w.store.SetConnectionAuthorized(context.WithoutCancel(gctx), userID, false); err != nil {
					log.Printf("[worker] Failed to mark %s unauthorized: %v", userID, err)
				} else {
					log.Printf("[worker] Marked %s unauthorized: %s", userID, summary.ErrorMessage)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			report.Summaries = append(report.Summaries, summary)
			report.EmailsSeen += summary.Classified
			report.StatusUpdate += summary.Updated
			switch summary.Outcome {
			case types.OutcomeCompleted:
				report.Completed++
			case types.OutcomeAuthError:
				report.AuthErrors++
			default:
				report.Failed++
			}
			return nil
		})
	}

	_ = g.Wait()
	return report, nil
}
