package session

import (
	"sync"

	"voicelog/internal/models"
)

// Snapshot is a point-in-time view of State.
type Snapshot struct {
	User    *models.User
	Loading bool
}

// State holds the current user and a loading flag, and notifies subscribers
// on every change. Notifications are delivered one change at a time, in the
// order the changes were made; subscribers must not write to the State.
type State struct {
	// notifyMu serializes change plus fan-out; mu guards the fields.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	user     *models.User
	loading  bool
	nextID   int
	subs     map[int]func(Snapshot)
}

// NewState returns a State that is loading and has no user.
func NewState() *State {
	return &State{loading: true, subs: make(map[int]func(Snapshot))}
}

// Snapshot returns the current value.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{User: s.user, Loading: s.loading}
}

// User returns the current user or nil.
func (s *State) User() *models.User {
	return s.Snapshot().User
}

// Subscribe registers fn and immediately calls it with the current value.
// The returned func removes the subscription.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	snap := Snapshot{User: s.user, Loading: s.loading}
	s.mu.Unlock()

	fn(snap)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *State) setUser(user *models.User) {
	s.update(func() { s.user = user })
}

func (s *State) setLoading(loading bool) {
	s.update(func() { s.loading = loading })
}

func (s *State) update(mutate func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	mutate()
	snap := Snapshot{User: s.user, Loading: s.loading}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
