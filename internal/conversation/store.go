package conversation

import "sync"

// Listener observes dispatches. It receives the state after all actions of a
// dispatch were applied, together with those actions in order. Listeners must
// not dispatch.
type Listener func(state State, actions []Action)

// Store owns the conversation state. Dispatches are serialised and every
// multi-action dispatch becomes visible to readers and listeners at once.
type Store struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	state     State
	listeners []Listener
}

// NewStore returns a Store holding initial.
func NewStore(initial State) *Store {
	if initial.Conversations == nil {
		initial.Conversations = []Conversation{}
	}
	return &Store{state: initial}
}

// State returns the current state. Callers must treat it as read-only.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers l for subsequent dispatches.
func (s *Store) Subscribe(l Listener) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Dispatch applies actions in order and returns the resulting state.
func (s *Store) Dispatch(actions ...Action) State {
	return s.DispatchFunc(func(State) []Action { return actions })
}

// DispatchFunc derives actions from the current state and applies them
// without any other dispatch interleaving.
func (s *Store) DispatchFunc(fn func(State) []Action) State {
	s.mu.Lock()
	actions := fn(s.state)
	next := s.state
	for _, action := range actions {
		next = Reduce(next, action)
	}
	s.state = next

	// Hand over to the notify lock before releasing the state lock so
	// listeners observe dispatches in the order they were applied.
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if len(actions) > 0 {
		for _, l := range s.listeners {
			l(next, actions)
		}
	}
	return next
}
