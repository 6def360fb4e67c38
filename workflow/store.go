package workflow

import (
	"context"
	"errors"
	"fmt"
)

// WorkItemID uniquely identifies a work-item within a workflow store.
type WorkItemID string

// WorkItem is a unit of work claimed from a workflow store.
type WorkItem struct {
	ID   WorkItemID
	Spec map[string]interface{}
}

// Query restricts the work-items that may be claimed by a worker.
//
// Its interpretation is left to the store implementation. A nil query matches
// any work-item.
type Query map[string]interface{}

// Result is the outcome of executing a work-item.
type Result struct {
	// Output is arbitrary data produced by the execution.
	Output map[string]interface{}

	// Error describes the failure of the execution, if any.
	Error string
}

// Failed returns true if the execution failed.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Store is an interface to a workflow store.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// NextWorkItem claims the next work-item that matches q.
	//
	// ok is false if there is currently no such work-item.
	NextWorkItem(ctx context.Context, q Query) (_ WorkItem, ok bool, _ error)

	// PingWorkItem refreshes the liveness of a claimed work-item.
	//
	// It must not return an error for a work-item that has already been
	// completed.
	PingWorkItem(ctx context.Context, id WorkItemID) error

	// CompleteWorkItem records the result of a claimed work-item.
	CompleteWorkItem(ctx context.Context, id WorkItemID, r Result) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrUnavailable indicates that the workflow store can not be reached.
var ErrUnavailable = errors.New("workflow store is unavailable")

// UnknownWorkItemError is returned when an operation refers to a work-item that
// does not exist.
type UnknownWorkItemError struct {
	ID WorkItemID
}

func (e UnknownWorkItemError) Error() string {
	return fmt.Sprintf(
		"work-item with ID '%s' does not exist",
		e.ID,
	)
}
