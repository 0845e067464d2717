package http

import "testing"

func TestRateLimiterCapsRequests(t *testing.T) {
	rl := newRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.allow() {
		t.Fatal("request over the limit should be rejected")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	for i := 0; i < 1000; i++ {
		if !rl.allow() {
			t.Fatal("disabled limiter must allow everything")
		}
	}

	var nilLimiter *rateLimiter
	if !nilLimiter.allow() {
		t.Fatal("nil limiter must allow everything")
	}
}
