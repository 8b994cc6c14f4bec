package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_BurstIsTenPercent(t *testing.T) {
	l := New(600)

	allowed := 0
	for i := 0; i < 100; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 60 {
		t.Errorf("expected a burst of 60, got %d", allowed)
	}
}

func TestNew_Unlimited(t *testing.T) {
	l := New(0)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("unlimited limiter rejected request %d", i)
		}
	}
}

func TestWait_RespectsContext(t *testing.T) {
	l := New(1) // one token per minute
	if !l.Allow() {
		t.Fatal("expected first token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected Wait to fail once the context expires")
	}
}

func TestSet_OneLimiterPerKey(t *testing.T) {
	s := NewSet(60)

	if s.For("oracle") != s.For("oracle") {
		t.Error("expected the same limiter for the same key")
	}
	if s.For("oracle") == s.For("lending") {
		t.Error("expected distinct limiters for distinct keys")
	}
}
