package authstate

import (
	"log/slog"
	"sync"
)

// Machine owns the single app-wide session snapshot. It is constructed once
// at startup and passed down explicitly; there is no package-level instance.
//
// Dispatches are serialized by the mutex, so a transition always runs to
// completion against the snapshot it started from.
type Machine struct {
	mu     sync.RWMutex
	state  Session
	logger *slog.Logger
}

// NewMachine creates a machine in the initial (loading, uninitialized)
// state, matching a gateway that has not yet attempted session recovery.
func NewMachine(logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		state:  Session{Loading: true},
		logger: logger,
	}
}

// Dispatch folds ev into the current state and returns the new snapshot.
func (m *Machine) Dispatch(ev Event) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := Reduce(m.state, ev)
	if next.IsAuthenticated != m.state.IsAuthenticated {
		m.logger.Info("auth state changed",
			slog.Bool("authenticated", next.IsAuthenticated))
	}
	m.state = next
	return next
}

// Snapshot returns a copy of the current session state.
func (m *Machine) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the current bearer token, or "" when unauthenticated.
func (m *Machine) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Token
}
