package liveness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/registry"
	"github.com/dogmatiq/jobpack/workflow"
	"github.com/dogmatiq/linger"
	"go.uber.org/multierr"
)

// DefaultPingInterval is the default interval between scans of the registry.
const DefaultPingInterval = time.Hour

// ErrStopped is returned by Monitor.Run() if the monitor has already run.
var ErrStopped = errors.New("liveness monitor has already been stopped")

// UnreachableError is returned by Monitor.Run() when the monitor can no longer
// reach the shared state at all.
type UnreachableError struct {
	Cause error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf(
		"liveness monitor is unable to reach the shared state: %s",
		e.Cause,
	)
}

func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// Monitor pings the work-items claimed by live worker processes.
type Monitor struct {
	// Registry is the table of claimed work-items.
	Registry registry.Table

	// Store is the workflow store that is pinged.
	Store workflow.Store

	// Probe is used to check if each worker process exists.
	// If it is nil, OSProbe is used.
	Probe Probe

	// Interval is the time between scans. If it is zero,
	// DefaultPingInterval is used.
	Interval time.Duration

	// Logger is the target for log messages from the monitor.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m   sync.Mutex
	ran bool
}

// Run scans the registry every interval until ctx is canceled or the shared
// state becomes unreachable.
//
// The first scan happens immediately. A monitor can only be run once, any
// subsequent call returns ErrStopped.
func (m *Monitor) Run(ctx context.Context) error {
	m.m.Lock()
	ran := m.ran
	m.ran = true
	m.m.Unlock()

	if ran {
		return ErrStopped
	}

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultPingInterval
	}

	for {
		if err := m.scan(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		if err := linger.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// scan pings the work-item of each registry entry that belongs to a live
// process.
//
// It returns an error only if the shared state is unreachable. Failures to
// ping individual work-items are logged.
func (m *Monitor) scan(ctx context.Context) error {
	entries, err := m.Registry.Snapshot(ctx)
	if err != nil {
		return &UnreachableError{err}
	}

	var (
		probe       = m.probe()
		failures    error
		attempts    int
		unavailable int
	)

	for _, e := range entries {
		if !e.Claimed() {
			continue
		}

		st, err := probe.Probe(e.PID)
		if err != nil {
			logging.Debug(
				m.Logger,
				"unable to probe worker process %d, assuming it is alive: %s",
				e.PID,
				err,
			)
		}

		if !st.IsAlive() {
			logging.Debug(
				m.Logger,
				"worker process %d has exited, not pinging work-item '%s'",
				e.PID,
				e.WorkItemID,
			)
			continue
		}

		attempts++

		if err := m.Store.PingWorkItem(ctx, e.WorkItemID); err != nil {
			if errors.Is(err, workflow.ErrUnavailable) {
				unavailable++
			}

			failures = multierr.Append(
				failures,
				fmt.Errorf("work-item '%s' (pid %d): %w", e.WorkItemID, e.PID, err),
			)
		}
	}

	if failures == nil {
		return nil
	}

	if attempts > 0 && unavailable == attempts {
		return &UnreachableError{failures}
	}

	logging.Log(
		m.Logger,
		"unable to ping %d of %d work-item(s): %s",
		len(multierr.Errors(failures)),
		attempts,
		failures,
	)

	return nil
}

func (m *Monitor) probe() Probe {
	if m.Probe != nil {
		return m.Probe
	}

	return OSProbe{}
}
