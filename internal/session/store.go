package session

import "sync"

// Store owns the sessions of all users.
type Store struct {
	mu       sync.Mutex
	defaults Defaults
	states   map[string]*State
}

// NewStore creates a Store that seeds new sessions with defaults.
func NewStore(defaults Defaults) *Store {
	return &Store{defaults: defaults, states: make(map[string]*State)}
}

// Get returns the session for userID, creating it when needed. created reports
// whether the session is new.
func (s *Store) Get(userID string) (state *State, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		return st, false
	}
	st := NewState(userID, s.defaults)
	s.states[userID] = st
	return st, true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
