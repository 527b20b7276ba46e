package room

import (
	"time"
)

// RateLimiter tracks per-identity message budgets with a minute-based
// sliding window. It is actor-confined, so no locking is needed.
type RateLimiter struct {
	limit   int
	clients map[string]*clientLimit
}

// clientLimit tracks one identity's window.
type clientLimit struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter creates a limiter allowing limit messages per minute.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		clients: make(map[string]*clientLimit),
	}
}

// Allow checks whether the identity may send another message.
func (rl *RateLimiter) Allow(identityID string) bool {
	now := time.Now()

	limit, exists := rl.clients[identityID]
	if !exists {
		rl.clients[identityID] = &clientLimit{messageCount: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= time.Minute {
		limit.messageCount = 1
		limit.windowStart = now
		return true
	}

	if limit.messageCount >= rl.limit {
		return false
	}

	limit.messageCount++
	return true
}

// Cleanup removes identities idle for several windows.
func (rl *RateLimiter) Cleanup() {
	now := time.Now()
	for id, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*time.Minute {
			delete(rl.clients, id)
		}
	}
}
