// Package lockfile provides a mutual-exclusion lock that is shared by
// independent OS processes.
//
// The lock is an advisory lock on a file. The orchestrator creates the file
// once and passes its path to each worker, which opens its own handle.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dogmatiq/jobpack/internal/x/syncx"
	"github.com/dogmatiq/linger"
)

// DefaultPollInterval is the default interval between attempts to acquire a
// lock that is held by another process.
const DefaultPollInterval = 10 * time.Millisecond

// Create creates a new, empty lock file in dir and returns its path.
//
// If dir is empty, the default directory for temporary files is used.
func Create(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "jobpack-*.lock")
	if err != nil {
		return "", fmt.Errorf("unable to create lock file: %w", err)
	}

	return f.Name(), f.Close()
}

// Lock is a handle to a lock file.
type Lock struct {
	// PollInterval is the interval between attempts to acquire the lock. If
	// it is zero, DefaultPollInterval is used.
	PollInterval time.Duration

	path  string
	file  *os.File
	local syncx.Mutex
}

// Open returns a handle to the lock file at path.
//
// The file must already exist.
func Open(path string) (*Lock, error) {
	if path == "" {
		return nil, errors.New("lock file path is empty")
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file: %w", err)
	}

	return &Lock{
		path: path,
		file: f,
	}, nil
}

// Path returns the path to the lock file.
func (l *Lock) Path() string {
	return l.path
}

// Lock acquires the lock.
//
// It blocks until the lock is acquired, or ctx is canceled.
func (l *Lock) Lock(ctx context.Context) error {
	// Handles share the OS lock with every goroutine in this process, so
	// goroutines are excluded from each other first.
	if err := l.local.Lock(ctx); err != nil {
		return err
	}

	interval := l.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		ok, err := tryLock(l.file)
		if err != nil {
			l.local.Unlock()
			return fmt.Errorf("unable to acquire lock on %s: %w", l.path, err)
		}

		if ok {
			return nil
		}

		if err := linger.Sleep(ctx, interval); err != nil {
			l.local.Unlock()
			return err
		}
	}
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	defer l.local.Unlock()

	if err := unlock(l.file); err != nil {
		return fmt.Errorf("unable to release lock on %s: %w", l.path, err)
	}

	return nil
}

// Close closes the handle, releasing the lock if it is held.
func (l *Lock) Close() error {
	return l.file.Close()
}
