// Package registry tracks which work-item each packed worker process is
// currently executing.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/dogmatiq/jobpack/workflow"
)

// Entry associates a worker process with the work-item it has claimed.
type Entry struct {
	// PID is the OS process ID of the worker.
	PID int

	// WorkItemID is the work-item currently claimed by the worker. It is empty
	// if the worker is not executing a work-item.
	WorkItemID workflow.WorkItemID
}

// Claimed returns true if the worker has claimed a work-item.
func (e Entry) Claimed() bool {
	return e.WorkItemID != ""
}

// Table maps worker processes to the work-items they have claimed.
//
// Each worker writes only its own entry. Entries are never removed, a worker
// clears its claim by setting an empty work-item ID.
type Table interface {
	// Set records id as the work-item claimed by the worker with the given
	// PID. An empty id clears the claim.
	Set(ctx context.Context, pid int, id workflow.WorkItemID) error

	// Snapshot returns the current entries, ordered by PID.
	Snapshot(ctx context.Context) ([]Entry, error)
}

// Local is an in-memory Table.
//
// Writes to different entries never contend with each other and a concurrent
// Snapshot() observes each entry either before or after a write.
type Local struct {
	entries sync.Map // map[int]workflow.WorkItemID
}

var _ Table = (*Local)(nil)

// NewLocal returns a new, empty in-memory table.
func NewLocal() *Local {
	return &Local{}
}

// Set records id as the work-item claimed by the worker with the given PID.
func (t *Local) Set(_ context.Context, pid int, id workflow.WorkItemID) error {
	t.entries.Store(pid, id)
	return nil
}

// Snapshot returns the current entries, ordered by PID.
func (t *Local) Snapshot(context.Context) ([]Entry, error) {
	var entries []Entry

	t.entries.Range(func(k, v interface{}) bool {
		entries = append(entries, Entry{
			PID:        k.(int),
			WorkItemID: v.(workflow.WorkItemID),
		})
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PID < entries[j].PID
	})

	return entries, nil
}
