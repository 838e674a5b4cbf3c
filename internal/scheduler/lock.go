package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another worker already holds the lock file.
var ErrLocked = errors.New("another worker is already running")

// DefaultLockPath is used when no lock path is configured.
func DefaultLockPath() string {
	return filepath.Join(os.TempDir(), "job-tracker-worker.lock")
}

// AcquireLock takes an exclusive, non-blocking lock on path. The caller must
// Unlock the returned lock on shutdown.
func AcquireLock(path string) (*flock.Flock, error) {
	if path == "" {
		path = DefaultLockPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}
	return lock, nil
}
