// Package ticketlock serializes state-mutating work per ticket id.
// It is the sole concurrency-correctness mechanism for ticket
// mutations: every lifecycle transition runs inside WithTicketLock.
package ticketlock

import (
	"context"
	"sync"
)

type lockState struct {
	// held marks a function currently executing under the lock.
	held bool
	// waiters are granted strictly in FIFO arrival order.
	waiters []chan struct{}
}

// Manager maps ticket ids to an execution queue. Calls for the same id
// run one at a time in arrival order; calls for different ids run fully
// concurrently. Entries are removed as soon as a queue drains, so the
// map only holds ids with in-flight work.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

// NewManager constructs an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*lockState)}
}

// WithTicketLock runs fn while holding the exclusive slot for ticketID.
// An error (or panic) from fn releases the slot and never breaks the
// queue for later callers; fn's error is returned to this caller only.
// A caller whose ctx is cancelled while queued gives up its place and
// returns ctx.Err().
func (m *Manager) WithTicketLock(ctx context.Context, ticketID string, fn func(ctx context.Context) error) error {
	if err := m.acquire(ctx, ticketID); err != nil {
		return err
	}
	defer m.release(ticketID)
	return fn(ctx)
}

func (m *Manager) acquire(ctx context.Context, ticketID string) error {
	m.mu.Lock()
	st, ok := m.locks[ticketID]
	if !ok {
		st = &lockState{}
		m.locks[ticketID] = st
	}
	if !st.held {
		st.held = true
		m.mu.Unlock()
		return nil
	}
	grant := make(chan struct{})
	st.waiters = append(st.waiters, grant)
	m.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		for i, w := range st.waiters {
			if w == grant {
				st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
				m.mu.Unlock()
				return ctx.Err()
			}
		}
		m.mu.Unlock()
		// Grant raced the cancellation: we own the slot, hand it on.
		m.release(ticketID)
		return ctx.Err()
	}
}

func (m *Manager) release(ticketID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.locks[ticketID]
	if !ok {
		return
	}
	if len(st.waiters) > 0 {
		next := st.waiters[0]
		st.waiters = st.waiters[1:]
		close(next)
		return
	}
	st.held = false
	delete(m.locks, ticketID)
}

// pendingFor reports queue depth for a ticket id. Test helper.
func (m *Manager) pendingFor(ticketID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.locks[ticketID]
	if !ok {
		return 0
	}
	n := len(st.waiters)
	if st.held {
		n++
	}
	return n
}
