package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow(1) {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow(1) {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow(1) {
		t.Error("expected third token to be rejected (burst exhausted)")
	}
	if l.Delay() <= 0 {
		t.Error("expected a positive delay while exhausted")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !l.Allow(1) {
			t.Fatalf("expected unlimited limiter to allow request %d", i)
		}
	}
}

func TestLimiterRegistry(t *testing.T) {
	reg := NewLimiterRegistry(100, 10, 100*time.Millisecond)
	defer reg.Close()

	l1 := reg.Get("alice")
	l2 := reg.Get("bob")

	if l1 == l2 {
		t.Error("expected different limiters for different owners")
	}
	if reg.Get("alice") != l1 {
		t.Error("expected same limiter for same owner")
	}

	time.Sleep(250 * time.Millisecond)
	if reg.Len() != 0 {
		t.Errorf("expected idle limiters to be dropped, have %d", reg.Len())
	}
	if reg.Get("alice") == l1 {
		t.Error("expected old limiter to be cleaned up and replaced")
	}
}

func TestLimiterRegistry_AllowIsPerKey(t *testing.T) {
	reg := NewLimiterRegistry(0.001, 1, time.Minute)
	defer reg.Close()

	if !reg.Allow("alice") {
		t.Fatal("expected first request to pass")
	}
	if reg.Allow("alice") {
		t.Error("expected second request for alice to be limited")
	}
	if !reg.Allow("bob") {
		t.Error("expected bob to have an independent budget")
	}
	reg.Close()
	reg.Close()
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(100, 1)
	l.Allow(1) // consume burst

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, 1); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Wait returned too early")
	}
}
