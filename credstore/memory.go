package credstore

import "sync"

// Memory is a thread-safe in-memory Store. Suitable for tests and demos.
type Memory struct {
	mu      sync.RWMutex
	present bool
	session StoredSession
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Write(s StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UserJSON = append([]byte(nil), s.UserJSON...)
	m.session = s
	m.present = true
	return nil
}

func (m *Memory) Read() (StoredSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.present {
		return StoredSession{}, false, nil
	}
	s := m.session
	s.UserJSON = append([]byte(nil), s.UserJSON...)
	return s, true, nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = StoredSession{}
	m.present = false
	return nil
}
