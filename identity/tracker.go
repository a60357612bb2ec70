package identity

import (
	"sync"

	"voting-coordinator/models"
)

// Tracker holds the identity currently acting in the session.
type Tracker struct {
	mu          sync.RWMutex
	current     models.Identity
	subscribers []func(models.Identity)
}

func NewTracker(initial models.Identity) *Tracker {
	return &Tracker{current: initial}
}

func (t *Tracker) Current() models.Identity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Subscribe registers fn to be called after every identity change.
func (t *Tracker) Subscribe(fn func(models.Identity)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

// OnIdentityChanged replaces the current identity and notifies subscribers.
// A notification carrying the current identity is ignored and reported as
// false.
func (t *Tracker) OnIdentityChanged(newIdentity models.Identity) bool {
	t.mu.Lock()
	if t.current == newIdentity {
		t.mu.Unlock()
		return false
	}
	t.current = newIdentity
	subscribers := make([]func(models.Identity), len(t.subscribers))
	copy(subscribers, t.subscribers)
	t.mu.Unlock()

	for _, fn := range subscribers {
		fn(newIdentity)
	}
	return true
}
