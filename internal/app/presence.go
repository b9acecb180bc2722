package app

import (
	"sync"
	"time"

	"deckclash-challenge-service/internal/domain"
)

// PresenceTracker is the client-side mirror of a session's presence map. A
// channel sync replaces the whole map; entries are never merged one by one,
// so whatever the snapshot says is the truth.
type PresenceTracker struct {
	sessionID string
	userID    string
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]domain.PresenceEntry
}

func NewPresenceTracker(sessionID, userID string) *PresenceTracker {
	return &PresenceTracker{
		sessionID: sessionID,
		userID:    userID,
		now:       time.Now,
		entries:   make(map[string]domain.PresenceEntry),
	}
}

// ApplySync replaces the local map with the channel snapshot.
func (t *PresenceTracker) ApplySync(snapshot map[string]domain.PresenceEntry) {
	replacement := make(map[string]domain.PresenceEntry, len(snapshot))
	for userID, entry := range snapshot {
		replacement[userID] = entry
	}
	t.mu.Lock()
	t.entries = replacement
	t.mu.Unlock()
}

// Self returns the local player's own presence payload.
func (t *PresenceTracker) Self() (domain.PresenceEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[t.userID]
	return entry, ok
}

// Get looks up one player's entry.
func (t *PresenceTracker) Get(userID string) (domain.PresenceEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[userID]
	return entry, ok
}

// Snapshot copies the current map for iteration.
func (t *PresenceTracker) Snapshot() map[string]domain.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.PresenceEntry, len(t.entries))
	for userID, entry := range t.entries {
		out[userID] = entry
	}
	return out
}

// CountWithStatus reports how many tracked players are in the given state.
func (t *PresenceTracker) CountWithStatus(status domain.PresenceStatus) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, entry := range t.entries {
		if entry.Status == status {
			n++
		}
	}
	return n
}
