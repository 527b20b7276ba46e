package presence

import (
	"wardline/pkg/types"
)

// Tracker holds the set of currently authenticated users in a room. It is
// actor-confined: all calls happen on the owning room's event loop. Clients
// receive full snapshots and replace their state wholesale, so no diffing is
// maintained here.
type Tracker struct {
	entries map[string]*types.PresenceEntry
	order   []string // join order for stable snapshots
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*types.PresenceEntry),
	}
}

// Add registers an authenticated identity. Re-adding an existing identity
// refreshes its entry without changing its position.
func (t *Tracker) Add(identity *types.Identity) {
	if _, exists := t.entries[identity.ID]; !exists {
		t.order = append(t.order, identity.ID)
	}
	t.entries[identity.ID] = &types.PresenceEntry{
		ID:          identity.ID,
		DisplayName: identity.DisplayName,
		AvatarRef:   identity.AvatarRef,
	}
}

// Remove drops an identity, typically when its last session closes.
func (t *Tracker) Remove(identityID string) {
	if _, exists := t.entries[identityID]; !exists {
		return
	}
	delete(t.entries, identityID)
	for i, id := range t.order {
		if id == identityID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether an identity is currently present.
func (t *Tracker) Contains(identityID string) bool {
	_, exists := t.entries[identityID]
	return exists
}

// Snapshot returns all present identities in join order.
func (t *Tracker) Snapshot() []*types.PresenceEntry {
	out := make([]*types.PresenceEntry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id])
	}
	return out
}

// Len returns the number of present identities.
func (t *Tracker) Len() int {
	return len(t.entries)
}
