package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterCapsWithinWindow(t *testing.T) {
	l := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("request %d denied under the limit", i+1)
		}
	}
	if l.Allow("u1") {
		t.Error("request over the limit allowed")
	}
	if !l.Allow("u2") {
		t.Error("one noisy key throttled another")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	l := NewRateLimiter(1, 20*time.Millisecond)
	if !l.Allow("u1") {
		t.Fatal("first request denied")
	}
	if l.Allow("u1") {
		t.Fatal("second request allowed inside the window")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("u1") {
		t.Error("bucket did not reset after the window elapsed")
	}
}
