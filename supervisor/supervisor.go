// Package supervisor starts and tracks the packed worker processes.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/allocation"
	"github.com/dogmatiq/jobpack/sharedstate"
	"github.com/dogmatiq/jobpack/worker"
	"github.com/dogmatiq/linger"
	"github.com/moby/sys/reexec"
	"go.uber.org/multierr"
)

// Stagger is the delay between starting consecutive workers.
const Stagger = 150 * time.Millisecond

// CommandFunc returns the command used to start a worker process.
//
// The returned command must not have been started. Its environment is
// extended with the worker's configuration.
type CommandFunc func() *exec.Cmd

// DefaultCommand re-executes the current binary into the worker entry point.
func DefaultCommand() *exec.Cmd {
	return reexec.Command(worker.EntryPoint)
}

// Supervisor starts one worker process per share of an allocation.
type Supervisor struct {
	// Command returns the command used to start each worker. If it is nil,
	// DefaultCommand is used.
	Command CommandFunc

	// Stdout and Stderr receive the output of each worker. If they are nil,
	// the output of the current process is used.
	Stdout, Stderr io.Writer

	// Debug enables debug logging in the workers.
	Debug bool

	// Logger is the target for log messages about the workers.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger
}

// Launch starts a worker process for each share, in order, waiting Stagger
// between each start.
//
// Each worker receives its own configuration, built from loop, its share, the
// endpoint of the shared state service and the path of the shared lock file.
//
// If any worker can not be started, the workers that have already started are
// terminated and waited for before the error is returned. Canceling ctx
// terminates every worker.
func (s *Supervisor) Launch(
	ctx context.Context,
	loop worker.LoopConfig,
	shares []allocation.Share,
	ep sharedstate.Endpoint,
	lockFile string,
) ([]*Process, error) {
	var procs []*Process

	for i, share := range shares {
		if i > 0 {
			if err := linger.Sleep(ctx, Stagger); err != nil {
				s.abort(procs)
				return nil, err
			}
		}

		p, err := s.start(ctx, worker.Config{
			Packed:   true,
			Endpoint: ep,
			Share:    share,
			LockFile: lockFile,
			Index:    i,
			Loop:     loop,
			Debug:    s.Debug,
		})
		if err != nil {
			s.abort(procs)
			return nil, fmt.Errorf("unable to start worker %d: %w", i, err)
		}

		procs = append(procs, p)
	}

	return procs, nil
}

// Wait blocks until every process has exited.
//
// Processes that exit with an error are logged. A failure of one process does
// not affect the others. The returned error combines the failures of all
// processes.
func (s *Supervisor) Wait(procs []*Process) error {
	var err error

	for _, p := range procs {
		if e := p.Wait(); e != nil {
			logging.Log(s.Logger, "worker %d (pid %d) failed: %s", p.Index, p.PID(), e)
			err = multierr.Append(err, fmt.Errorf("worker %d: %w", p.Index, e))
		} else {
			logging.Debug(s.Logger, "worker %d (pid %d) exited", p.Index, p.PID())
		}
	}

	return err
}

// Terminate asks every process that is still running to stop.
func (s *Supervisor) Terminate(procs []*Process) {
	for _, p := range procs {
		if err := p.Terminate(); err != nil {
			logging.Log(s.Logger, "unable to terminate worker %d (pid %d): %s", p.Index, p.PID(), err)
		}
	}
}

func (s *Supervisor) start(ctx context.Context, cfg worker.Config) (*Process, error) {
	env, err := cfg.Environ()
	if err != nil {
		return nil, err
	}

	cmd := s.command()
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, env)

	cmd.Stdout = s.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}

	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &Process{
		Index: cfg.Index,
		Share: cfg.Share,
		cmd:   cmd,
		done:  make(chan struct{}),
	}

	// GOROUTINE EXIT STRATEGY: The goroutine ends when the process exits.
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	// GOROUTINE EXIT STRATEGY: The goroutine ends when the process exits, or
	// when ctx is canceled, after asking the process to stop.
	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.Terminate()
		}
	}()

	logging.Log(
		s.Logger,
		"started worker %d (pid %d) with %d processor(s) on %s",
		p.Index,
		p.PID(),
		cfg.Share.Processors,
		cfg.Share,
	)

	return p, nil
}

// abort terminates the given processes and waits for them to exit.
func (s *Supervisor) abort(procs []*Process) {
	s.Terminate(procs)

	for _, p := range procs {
		p.Wait()
	}
}

func (s *Supervisor) command() *exec.Cmd {
	if s.Command != nil {
		return s.Command()
	}

	return DefaultCommand()
}
