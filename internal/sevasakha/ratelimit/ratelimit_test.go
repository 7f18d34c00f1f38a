package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("@ceo:example.org") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if l.Allow("@ceo:example.org") {
		t.Fatal("fourth call should be rejected")
	}
	if !l.Allow("@assistant:example.org") {
		t.Error("other keys must have their own budget")
	}
	if got := l.Remaining("@ceo:example.org"); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	l := New(2, time.Minute)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	l.Allow("k")
	clock = clock.Add(30 * time.Second)
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("limit reached, call should be rejected")
	}

	clock = clock.Add(31 * time.Second)
	if !l.Allow("k") {
		t.Fatal("first call left the window, a slot should be free")
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(0, 0)
	if l.Limit() != DefaultLimit || l.window != time.Minute {
		t.Errorf("unexpected defaults limit=%d window=%s", l.Limit(), l.window)
	}
	var nilLimiter *Limiter
	if !nilLimiter.Allow("anyone") {
		t.Error("nil limiter must allow")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(50, time.Minute)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("expected exactly 50 allowed calls, got %d", allowed)
	}
}

func TestLimiter_SweepsIdleKeys(t *testing.T) {
	l := New(2, time.Minute)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	for _, host := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.Allow(host)
	}
	if len(l.counters) != 3 {
		t.Fatalf("expected 3 tracked keys, got %d", len(l.counters))
	}

	clock = clock.Add(2 * time.Minute)
	l.Allow("10.0.0.4")
	if len(l.counters) != 1 {
		t.Errorf("expected idle keys to be swept, %d left", len(l.counters))
	}
	if _, ok := l.counters["10.0.0.4"]; !ok {
		t.Error("active key must survive the sweep")
	}
}
