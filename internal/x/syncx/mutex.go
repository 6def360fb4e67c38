package syncx

import (
	"context"
	"sync"
)

// Mutex is a context-aware mutual exclusion lock.
//
// The zero-value is an unlocked mutex.
type Mutex struct {
	init     sync.Once
	unlocked chan struct{}
}

// Lock acquires the mutex.
//
// It blocks until the mutex is acquired, or ctx is canceled.
func (m *Mutex) Lock(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.init.Do(m.setup)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.unlocked:
		return nil
	}
}

// TryLock acquires the mutex if it is not currently locked.
func (m *Mutex) TryLock() bool {
	m.init.Do(m.setup)

	select {
	case <-m.unlocked:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex.
//
// It panics if the mutex is not currently locked.
func (m *Mutex) Unlock() {
	m.init.Do(m.setup)

	select {
	case m.unlocked <- struct{}{}:
	default:
		panic("mutex is not locked")
	}
}

func (m *Mutex) setup() {
	m.unlocked = make(chan struct{}, 1)
	m.unlocked <- struct{}{}
}
