package room

import (
	"testing"
	"time"
)

func TestRateLimiter_EnforcesLimit(t *testing.T) {
	limiter := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("alice") {
			t.Fatalf("message %d rejected under limit", i+1)
		}
	}
	if limiter.Allow("alice") {
		t.Error("fourth message allowed over limit")
	}
}

func TestRateLimiter_PerIdentityBudgets(t *testing.T) {
	limiter := NewRateLimiter(1)

	if !limiter.Allow("alice") {
		t.Fatal("alice's first message rejected")
	}
	if limiter.Allow("alice") {
		t.Error("alice's second message allowed")
	}
	if !limiter.Allow("bob") {
		t.Error("bob blocked by alice's budget")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	limiter := NewRateLimiter(1)

	limiter.Allow("alice")
	limiter.clients["alice"].windowStart = time.Now().Add(-2 * time.Minute)

	if !limiter.Allow("alice") {
		t.Error("message rejected after window expiry")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(10)

	limiter.Allow("alice")
	limiter.Allow("bob")
	limiter.clients["alice"].windowStart = time.Now().Add(-10 * time.Minute)

	limiter.Cleanup()

	if _, exists := limiter.clients["alice"]; exists {
		t.Error("stale identity survived cleanup")
	}
	if _, exists := limiter.clients["bob"]; !exists {
		t.Error("active identity removed by cleanup")
	}
}
