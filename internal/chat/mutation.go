package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Status is the lifecycle of one user-triggered request.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrPending is returned when a request of the same kind is already in flight.
var ErrPending = errors.New("a request is already in progress")

// State is a snapshot of a Mutation.
type State struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Mutation allows one call at a time and records how the last one ended.
type Mutation struct {
	slot *semaphore.Weighted

	mu    sync.RWMutex
	state State
}

func NewMutation() *Mutation {
	return &Mutation{
		slot:  semaphore.NewWeighted(1),
		state: State{Status: StatusIdle},
	}
}

// Run executes fn unless another call is pending, in which case it returns
// ErrPending without calling fn.
func (m *Mutation) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.slot.TryAcquire(1) {
		return ErrPending
	}
	defer m.slot.Release(1)

	m.set(State{Status: StatusPending, StartedAt: time.Now()})
	err := fn(ctx)

	m.mu.Lock()
	m.state.EndedAt = time.Now()
	if err != nil {
		m.state.Status = StatusError
		m.state.Error = err.Error()
	} else {
		m.state.Status = StatusSuccess
	}
	m.mu.Unlock()
	return err
}

func (m *Mutation) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Mutation) Pending() bool {
	return m.State().Status == StatusPending
}

// Exclusive runs fn while holding the slot, so no call can start until fn
// returns. The recorded state is left alone. It returns ErrPending if a call
// is in flight.
func (m *Mutation) Exclusive(fn func() error) error {
	if !m.slot.TryAcquire(1) {
		return ErrPending
	}
	defer m.slot.Release(1)
	return fn()
}

func (m *Mutation) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
