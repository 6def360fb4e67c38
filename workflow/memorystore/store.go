// Package memorystore is an in-memory workflow store.
//
// It is intended for tests and for running small batches of work-items seeded
// from a YAML file. Its state is lost when the process that hosts it exits.
package memorystore

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/dogmatiq/jobpack/workflow"
)

// DefaultRunExpiration is the default duration after which a running
// work-item that has not been pinged is considered lost.
var DefaultRunExpiration = 4 * time.Hour

// State is the state of a work-item within the store.
type State int

const (
	// Ready means the work-item may be claimed.
	Ready State = iota

	// Running means the work-item has been claimed and not yet completed.
	Running

	// Completed means the result of the work-item has been recorded.
	Completed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	default:
		return "COMPLETED"
	}
}

// Record is a snapshot of a work-item held by the store.
type Record struct {
	Item     workflow.WorkItem
	State    State
	Claims   int
	LastPing time.Time
	Result   workflow.Result
}

// Store is an in-memory implementation of workflow.Store.
type Store struct {
	// RunExpiration is the duration after which a running work-item that has
	// not been pinged is returned to the ready state. If it is zero,
	// DefaultRunExpiration is used.
	RunExpiration time.Duration

	// Now returns the current time. If it is nil, time.Now() is used.
	Now func() time.Time

	m       sync.Mutex
	order   []workflow.WorkItemID
	records map[workflow.WorkItemID]*Record
	closed  bool
}

var _ workflow.Store = (*Store)(nil)

// Add adds ready work-items to the store.
func (s *Store) Add(items ...workflow.WorkItem) error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.records == nil {
		s.records = map[workflow.WorkItemID]*Record{}
	}

	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("work-item ID must not be empty")
		}

		if _, ok := s.records[it.ID]; ok {
			return fmt.Errorf("work-item with ID '%s' already exists", it.ID)
		}

		s.records[it.ID] = &Record{Item: it}
		s.order = append(s.order, it.ID)
	}

	return nil
}

// Get returns a snapshot of the work-item with the given ID.
func (s *Store) Get(id workflow.WorkItemID) (Record, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	if r, ok := s.records[id]; ok {
		return *r, true
	}

	return Record{}, false
}

// NextWorkItem claims the oldest ready work-item that matches q.
//
// Running work-items that have not been pinged within the run expiration are
// returned to the ready state first.
func (s *Store) NextWorkItem(
	ctx context.Context,
	q workflow.Query,
) (workflow.WorkItem, bool, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.check(ctx); err != nil {
		return workflow.WorkItem{}, false, err
	}

	now := s.now()
	s.requeueLost(now)

	for _, id := range s.order {
		r := s.records[id]

		if r.State == Ready && matches(r.Item, q) {
			r.State = Running
			r.Claims++
			r.LastPing = now

			return r.Item, true, nil
		}
	}

	return workflow.WorkItem{}, false, nil
}

// PingWorkItem refreshes the liveness of a running work-item.
func (s *Store) PingWorkItem(ctx context.Context, id workflow.WorkItemID) error {
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}

	r, ok := s.records[id]
	if !ok {
		return workflow.UnknownWorkItemError{ID: id}
	}

	if r.State == Running {
		r.LastPing = s.now()
	}

	return nil
}

// CompleteWorkItem records the result of a running work-item.
func (s *Store) CompleteWorkItem(
	ctx context.Context,
	id workflow.WorkItemID,
	res workflow.Result,
) error {
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}

	r, ok := s.records[id]
	if !ok {
		return workflow.UnknownWorkItemError{ID: id}
	}

	if r.State != Running {
		return fmt.Errorf("work-item with ID '%s' is %s, not RUNNING", id, r.State)
	}

	r.State = Completed
	r.Result = res

	return nil
}

// Close marks the store as closed. Subsequent operations fail.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	s.closed = true

	return nil
}

// check returns an error if the store can not be used.
// It assumes s.m is locked.
func (s *Store) check(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("store is closed: %w", workflow.ErrUnavailable)
	}

	return ctx.Err()
}

// requeueLost returns running work-items that have not been pinged within the
// run expiration to the ready state. It assumes s.m is locked.
func (s *Store) requeueLost(now time.Time) {
	exp := s.RunExpiration
	if exp == 0 {
		exp = DefaultRunExpiration
	}

	for _, id := range s.order {
		r := s.records[id]

		if r.State == Running && now.Sub(r.LastPing) > exp {
			r.State = Ready
		}
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}

	return time.Now()
}

// matches returns true if every key in q has an equal value in the spec of it.
//
// Numbers are compared by value, so a query that has passed through a
// transport that only carries floating-point numbers still matches.
func matches(it workflow.WorkItem, q workflow.Query) bool {
	for k, v := range q {
		if !reflect.DeepEqual(normalize(it.Spec[k]), normalize(v)) {
			return false
		}
	}

	return true
}

// normalize returns v with every integer converted to a float64.
func normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, x := range v {
			m[k] = normalize(x)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(v))
		for i, x := range v {
			s[i] = normalize(x)
		}
		return s
	default:
		return v
	}
}
