package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/dogmatiq/jobpack/allocation"
)

// Process is a running worker process.
type Process struct {
	// Index is the zero-based position of the worker in the launch order.
	Index int

	// Share is the portion of the allocation assigned to the worker.
	Share allocation.Share

	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// PID returns the OS process ID of the worker.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit error, if any.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Terminate asks the process to stop by sending SIGTERM. If the signal is not
// supported the process is killed.
func (p *Process) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	err = p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}
