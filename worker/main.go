package worker

import (
	"context"
	"os"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/internal/x/loggingx"
	"github.com/dogmatiq/jobpack/lockfile"
	"github.com/dogmatiq/jobpack/registry"
	"github.com/dogmatiq/jobpack/sharedstate"
	"github.com/dogmatiq/jobpack/workflow"
)

// Runtime is the set of shared resources available to a running worker.
type Runtime struct {
	// Config is the worker's configuration.
	Config Config

	// PID is the OS process ID of the worker.
	PID int

	// Store is the proxy for the shared workflow store.
	Store workflow.Store

	// Registry is the proxy for the shared registry of claimed work-items.
	Registry registry.Table

	// Lock is the mutual-exclusion lock shared by all workers.
	Lock Locker

	// Logger is the target for log messages from the worker.
	Logger logging.Logger
}

// Locker is a mutual-exclusion lock that is shared between processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

var _ Locker = (*lockfile.Lock)(nil)

// Loop is the work loop of a worker.
type Loop interface {
	// Run executes work-items until the loop is finished or ctx is canceled.
	Run(ctx context.Context, rt Runtime) error
}

// Main runs a worker process with the given configuration.
//
// It connects to the shared state service, opens the shared lock and then runs
// loop. A failure to connect is returned as a *sharedstate.ConnectionError.
func Main(
	ctx context.Context,
	cfg Config,
	loop Loop,
	logger logging.Logger,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = loggingx.WithPrefix(logger, "[worker %d] ", cfg.Index)

	sess, err := sharedstate.Connect(ctx, cfg.Endpoint)
	if err != nil {
		return err
	}
	defer sess.Close()

	lock, err := lockfile.Open(cfg.LockFile)
	if err != nil {
		return err
	}
	defer lock.Close()

	rt := Runtime{
		Config:   cfg,
		PID:      os.Getpid(),
		Store:    sess.Store(),
		Registry: sess.Registry(),
		Lock:     lock,
		Logger:   logger,
	}

	logging.Log(
		logger,
		"started as pid %d with %d processor(s) on %s",
		rt.PID,
		cfg.Share.Processors,
		cfg.Share,
	)

	return loop.Run(ctx, rt)
}
