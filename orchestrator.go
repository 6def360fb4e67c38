// Package jobpack packs many sub-jobs into a single resource allocation.
//
// An orchestrator divides the allocation's nodes between a fixed number of
// worker processes, starts a shared state service through which the workers
// claim work-items from a workflow store, and keeps the claimed work-items
// alive for as long as the workers that claimed them are running.
package jobpack

import (
	"context"
	"os"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/allocation"
	"github.com/dogmatiq/jobpack/internal/x/loggingx"
	"github.com/dogmatiq/jobpack/liveness"
	"github.com/dogmatiq/jobpack/lockfile"
	"github.com/dogmatiq/jobpack/sharedstate"
	"github.com/dogmatiq/jobpack/supervisor"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs a packed job.
type Orchestrator struct {
	opts *options
}

// New returns a new orchestrator.
func New(options ...Option) *Orchestrator {
	return &Orchestrator{
		opts: resolveOptions(options...),
	}
}

// Run partitions the allocation, starts the workers and blocks until they have
// all exited.
//
// The shared state service is shut down before Run returns, regardless of the
// outcome.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	shares, err := allocation.Partition(
		o.opts.SubJobs,
		o.opts.Nodes,
		o.opts.ProcessorsPerNode,
		o.opts.Mode,
	)
	if err != nil {
		return err
	}

	logging.Log(
		o.opts.Logger,
		"packing %d sub-job(s) in %s mode",
		len(shares),
		o.opts.Mode,
	)

	lock, err := lockfile.Create(o.opts.LockDir)
	if err != nil {
		return err
	}
	defer os.Remove(lock)

	server := &sharedstate.Server{
		OpenStore:     o.opts.OpenStore,
		ListenAddress: o.opts.ListenAddress,
		Secret:        o.opts.Secret,
		Logger:        o.opts.Logger,
	}

	defer func() {
		err = multierr.Append(err, server.Shutdown())
	}()

	ep, err := server.Start(ctx)
	if err != nil {
		return err
	}

	if port, err := ep.Port(); err == nil {
		logging.Log(o.opts.Logger, "workers connect to the shared state service on port %d", port)
	}

	sup := &supervisor.Supervisor{
		Command: o.opts.Command,
		Stdout:  o.opts.Stdout,
		Stderr:  o.opts.Stderr,
		Debug:   o.opts.DebugWorkers,
		Logger:  o.opts.Logger,
	}

	procs, err := sup.Launch(ctx, o.opts.Loop, shares, ep, lock)
	if err != nil {
		return err
	}

	sess, err := sharedstate.Connect(ctx, ep)
	if err != nil {
		return abandon(sup, procs, err)
	}
	defer sess.Close()

	err = o.supervise(ctx, sup, procs, sess)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

// supervise runs the liveness monitor until every worker has exited.
func (o *Orchestrator) supervise(
	ctx context.Context,
	sup *supervisor.Supervisor,
	procs []*supervisor.Process,
	sess *sharedstate.Session,
) error {
	monitor := &liveness.Monitor{
		Registry: sess.Registry(),
		Store:    sess.Store(),
		Probe:    o.opts.Probe,
		Interval: o.opts.PingInterval,
		Logger:   loggingx.WithPrefix(o.opts.Logger, "[monitor] "),
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()

	var (
		g         errgroup.Group
		workerErr error
	)

	g.Go(func() error {
		err := monitor.Run(monitorCtx)
		if monitorCtx.Err() != nil {
			// The workers have exited, or the orchestrator is stopping.
			return nil
		}

		logging.Log(o.opts.Logger, "liveness monitor stopped: %s", err)

		if o.opts.MonitorFailurePolicy == AbortWorkers {
			logging.Log(o.opts.Logger, "terminating %d worker(s)", len(procs))
			sup.Terminate(procs)
		} else {
			logging.Log(o.opts.Logger, "workers continue without liveness monitoring")
		}

		return err
	})

	g.Go(func() error {
		defer stopMonitor()
		workerErr = sup.Wait(procs)
		return nil
	})

	monitorErr := g.Wait()

	logging.Log(o.opts.Logger, "all %d worker(s) have exited", len(procs))

	return multierr.Combine(workerErr, monitorErr)
}

// abandon terminates procs and waits for them to exit. It returns cause
// combined with the errors of the processes.
func abandon(
	sup *supervisor.Supervisor,
	procs []*supervisor.Process,
	cause error,
) error {
	sup.Terminate(procs)
	return multierr.Append(cause, sup.Wait(procs))
}
