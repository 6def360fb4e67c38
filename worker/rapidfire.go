package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/jobpack/workflow"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
)

// DefaultSleep is the default time to wait for new work-items when a worker
// runs forever.
const DefaultSleep = time.Minute

// Executor executes a single work-item.
type Executor interface {
	// Execute runs the work described by it.
	//
	// The returned output is stored as the result of the work-item. A non-nil
	// error marks the work-item as failed, it does not stop the work loop.
	Execute(ctx context.Context, rt Runtime, it workflow.WorkItem) (map[string]interface{}, error)
}

// Rapidfire is a Loop that claims and executes work-items one after another.
type Rapidfire struct {
	// Executor runs each claimed work-item.
	Executor Executor

	// Launches is the number of work-items to execute. Zero means until the
	// store has no more ready work-items. Forever means until ctx is canceled.
	Launches int

	// Sleep is the time to wait when the store has no ready work-items and
	// Launches is Forever. If it is zero, DefaultSleep is used.
	Sleep time.Duration

	// Query restricts the work-items that are claimed.
	Query workflow.Query

	// StorePackingInfo adds the worker's details to each result under the
	// "packing" key.
	StorePackingInfo bool

	// BackoffStrategy is the strategy used to delay polling the store after a
	// failure when Launches is Forever. If it is nil,
	// backoff.DefaultStrategy is used.
	BackoffStrategy backoff.Strategy
}

// NewRapidfire returns the work loop described by c, executing c.Command for
// each work-item.
func NewRapidfire(c LoopConfig) *Rapidfire {
	return &Rapidfire{
		Executor:         &CommandExecutor{Command: c.Command},
		Launches:         c.Launches,
		Sleep:            c.Sleep,
		Query:            c.Query,
		StorePackingInfo: c.StorePackingInfo,
	}
}

// Run executes work-items until the configured number of launches is
// reached, the store is exhausted or ctx is canceled.
func (r *Rapidfire) Run(ctx context.Context, rt Runtime) error {
	counter := backoff.Counter{
		Strategy: r.BackoffStrategy,
	}

	sleep := r.Sleep
	if sleep <= 0 {
		sleep = DefaultSleep
	}

	launched := 0

	for r.Launches <= 0 || launched < r.Launches {
		ok, err := r.launch(ctx, rt)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			if r.Launches != Forever {
				return err
			}

			delay := counter.Fail(err)

			logging.Log(
				rt.Logger,
				"delaying next attempt for %s: %s",
				delay,
				err,
			)

			if err := linger.Sleep(ctx, delay); err != nil {
				return err
			}

			continue
		}

		counter.Reset()

		if ok {
			launched++
			continue
		}

		if r.Launches != Forever {
			logging.Log(rt.Logger, "no more work-items, stopping after %d launch(es)", launched)
			return nil
		}

		logging.Debug(rt.Logger, "no work-items are ready, sleeping for %s", sleep)

		if err := linger.Sleep(ctx, sleep); err != nil {
			return err
		}
	}

	logging.Log(rt.Logger, "stopping after %d launch(es)", launched)

	return nil
}

// launch claims and executes a single work-item. It returns false if there was
// no work-item to claim.
func (r *Rapidfire) launch(ctx context.Context, rt Runtime) (bool, error) {
	it, ok, err := rt.Store.NextWorkItem(ctx, r.Query)
	if err != nil || !ok {
		return false, err
	}

	if err := rt.Registry.Set(ctx, rt.PID, it.ID); err != nil {
		return false, fmt.Errorf("unable to register claim of work-item '%s': %w", it.ID, err)
	}

	logging.Log(rt.Logger, "executing work-item '%s'", it.ID)

	output, err := r.Executor.Execute(ctx, rt, it)
	if ctx.Err() != nil {
		// The process is stopping. The claim is left in place, the store
		// requeues the work-item once it is no longer pinged.
		return false, ctx.Err()
	}

	res := workflow.Result{Output: output}
	if err != nil {
		res.Error = err.Error()
		logging.Log(rt.Logger, "work-item '%s' failed: %s", it.ID, err)
	}

	if r.StorePackingInfo {
		res.Output = withPackingInfo(res.Output, rt)
	}

	if err := rt.Registry.Set(ctx, rt.PID, ""); err != nil {
		return false, fmt.Errorf("unable to clear claim of work-item '%s': %w", it.ID, err)
	}

	if err := rt.Store.CompleteWorkItem(ctx, it.ID, res); err != nil {
		return false, fmt.Errorf("unable to complete work-item '%s': %w", it.ID, err)
	}

	logging.Log(rt.Logger, "completed work-item '%s'", it.ID)

	return true, nil
}

// withPackingInfo returns a copy of output with the worker's details added.
func withPackingInfo(output map[string]interface{}, rt Runtime) map[string]interface{} {
	out := make(map[string]interface{}, len(output)+1)
	for k, v := range output {
		out[k] = v
	}

	nodes := make([]interface{}, len(rt.Config.Share.Nodes))
	for i, n := range rt.Config.Share.Nodes {
		nodes[i] = n
	}

	out["packing"] = map[string]interface{}{
		"worker":     rt.Config.Index,
		"pid":        rt.PID,
		"nodes":      nodes,
		"processors": rt.Config.Share.Processors,
	}

	return out
}
