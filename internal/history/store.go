package history

import (
	"wardline/pkg/types"
)

// Store is an ordered, size-capped message sequence with category-aware
// eviction. It is owned by a single room actor and mutated only on that
// actor's event loop, so no locking is needed.
type Store struct {
	entries   []*types.Message
	cap       int
	protected func(*types.Message) bool
}

// NewStore creates a bounded store. The protected predicate marks entries
// that should be preferentially retained during eviction; nil selects the
// standard category rules (threaded, alert, call markers).
func NewStore(cap int, protected func(*types.Message) bool) *Store {
	if protected == nil {
		protected = func(m *types.Message) bool { return m.IsProtected() }
	}
	return &Store{
		entries:   make([]*types.Message, 0, cap),
		cap:       cap,
		protected: protected,
	}
}

// Append adds a message and prunes back to the cap. The invariant
// len <= cap holds after every call.
func (s *Store) Append(message *types.Message) {
	s.entries = append(s.entries, message)
	s.Prune()
}

// Prune evicts entries until the store is within its cap. Each round removes
// the oldest unprotected message; when only protected messages remain, the
// absolute oldest is removed regardless of category.
func (s *Store) Prune() {
	for len(s.entries) > s.cap {
		evicted := false
		for i, entry := range s.entries {
			if !s.protected(entry) {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			s.entries = s.entries[1:]
		}
	}
}

// Find returns the message with the given ID, or nil.
func (s *Store) Find(id string) *types.Message {
	for _, entry := range s.entries {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

// UpdateInPlace applies the mutator to the message with the given ID and
// reports whether it was found. Used for reactions, tombstones and status
// changes; entries are never replaced, only mutated.
func (s *Store) UpdateInPlace(id string, mutate func(*types.Message)) bool {
	entry := s.Find(id)
	if entry == nil {
		return false
	}
	mutate(entry)
	return true
}

// Snapshot returns the entries in append order. The returned slice is a copy;
// the messages themselves are shared with the store.
func (s *Store) Snapshot() []*types.Message {
	out := make([]*types.Message, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// AlertLog is the separate alert-category store: a smaller cap with plain
// FIFO eviction and no protected-category logic.
type AlertLog struct {
	entries []*types.Alert
	cap     int
}

// NewAlertLog creates an alert log with the given cap.
func NewAlertLog(cap int) *AlertLog {
	return &AlertLog{
		entries: make([]*types.Alert, 0, cap),
		cap:     cap,
	}
}

// Append adds an alert, evicting the oldest entries beyond the cap.
func (l *AlertLog) Append(alert *types.Alert) {
	l.entries = append(l.entries, alert)
	for len(l.entries) > l.cap {
		l.entries = l.entries[1:]
	}
}

// Snapshot returns the alerts in append order.
func (l *AlertLog) Snapshot() []*types.Alert {
	out := make([]*types.Alert, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of stored alerts.
func (l *AlertLog) Len() int {
	return len(l.entries)
}
