package pubcompose

import (
	"testing"
	"time"
)

func TestLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewLimiter(2, 200*time.Millisecond)
	defer limiter.Close()
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewLimiter(1, 150*time.Millisecond)
	defer limiter.Close()
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be blocked")
	}

	time.Sleep(200 * time.Millisecond)
	if !limiter.Allow(ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestLimiterIsPerKey(t *testing.T) {
	limiter := NewLimiter(1, 200*time.Millisecond)
	defer limiter.Close()

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first key to be allowed")
	}
	if !limiter.Allow("draft-1") {
		t.Fatalf("expected second key to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first key to be blocked after max")
	}
}

func TestLimiterCheckRecordForget(t *testing.T) {
	limiter := NewLimiter(2, time.Minute)
	defer limiter.Close()
	ip := "203.0.113.40"

	if !limiter.Check(ip) {
		t.Fatalf("expected fresh key to pass Check")
	}
	limiter.Record(ip)
	if !limiter.Check(ip) {
		t.Fatalf("expected one recorded failure to pass Check")
	}
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected Check to fail after max failures")
	}
	limiter.Forget(ip)
	if !limiter.Check(ip) {
		t.Fatalf("expected Forget to clear the history")
	}
}

func TestLimiterCloseIsIdempotent(t *testing.T) {
	limiter := NewLimiter(1, time.Millisecond)
	limiter.Close()
	limiter.Close()
}
