package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})

	if rl.config.Rate != 10 {
		t.Errorf("Rate = %f, want 10", rl.config.Rate)
	}
	if rl.config.Burst != 5 {
		t.Errorf("Burst = %d, want 5", rl.config.Burst)
	}
	if rl.config.MaxWait != 5*time.Second {
		t.Errorf("MaxWait = %v, want 5s", rl.config.MaxWait)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 5})

	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Errorf("Allow() = false on attempt %d, want true", i)
		}
	}
	if rl.Allow() {
		t.Error("Allow() = true after burst exhausted, want false")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(RateLimiterConfig{Rate: 10, Burst: 2})
	rl.now = func() time.Time { return now }
	rl.Reset()

	rl.Allow()
	rl.Allow()
	if rl.Allow() {
		t.Fatal("Allow() = true with empty bucket")
	}

	now = now.Add(100 * time.Millisecond)
	if !rl.Allow() {
		t.Error("Allow() = false after one token refilled, want true")
	}

	now = now.Add(time.Hour)
	if got := rl.Tokens(); got != 2 {
		t.Errorf("Tokens() = %f, want burst cap 2", got)
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:    1000,
		Burst:   1,
		MaxWait: time.Second,
	})
	rl.Allow()

	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestRateLimiter_WaitTimeout(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:    0.1,
		Burst:   1,
		MaxWait: 10 * time.Millisecond,
	})
	rl.Allow()

	err := rl.Wait(context.Background())
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Wait() error = %v, want ErrRateLimitExceeded", err)
	}
	if DefaultClassify(err) != ClassTransient {
		t.Error("rate limit errors should be retried")
	}
}

func TestRateLimiter_WaitContextCancellation(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:    0.1,
		Burst:   1,
		MaxWait: time.Second,
	})
	rl.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.1, Burst: 3})
	for rl.Allow() {
	}

	rl.Reset()

	if got := rl.Tokens(); got < 2.99 {
		t.Errorf("Tokens() after Reset = %f, want 3", got)
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 50})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}
