// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("backend overloaded")
	err := exec.Execute(context.Background(), "llm.chat", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("response is not valid JSON")
	err := exec.Execute(context.Background(), "llm.chat", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return Permanent()
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("timeout")
	err := exec.Execute(context.Background(), "weaviate.query", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) ErrorClassification {
		return Transient()
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last error after exhausting attempts, got %v", err)
	}
	if attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", attempts)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:     100 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	errTemp := errors.New("temporary")
	done := make(chan error, 1)
	go func() {
		done <- exec.Execute(ctx, "llm.chat", func(context.Context) error {
			attempts++
			return errTemp
		}, func(error) ErrorClassification {
			return Transient()
		})
	}()

	// Cancel while the executor waits out the first backoff.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected last attempt error on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "llm.chat", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "llm.chat", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatal("IsCircuitOpen should recognize open state errors")
	}
}

func TestExecuteBreakersAreIndependentPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	// Trip the breaker for llm.chat only.
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "llm.chat", func(context.Context) error {
			return errTemp
		}, classifier)
	}

	// weaviate.query must still pass through.
	err := exec.Execute(context.Background(), "weaviate.query", func(context.Context) error {
		return nil
	}, classifier)
	if err != nil {
		t.Fatalf("independent operation should succeed, got %v", err)
	}
}

func TestExecuteRateLimitsCalls(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     1 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
		RateLimit:           50, // 20ms between calls after the burst
		RateBurst:           1,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "tavily.search", func(context.Context) error {
			return nil
		}, nil)
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// First call consumes the burst; the next two wait ~20ms each.
	if elapsed < 30*time.Millisecond {
		t.Errorf("3 calls finished in %v, rate limiter not applied", elapsed)
	}
}

func TestExecuteNilCallback(t *testing.T) {
	exec := NewExecutor(Config{})
	if err := exec.Execute(context.Background(), "op", nil, nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}

func TestJitteredBackoff_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := jitteredBackoff(base, 0.1)
		if got < base {
			t.Fatalf("jittered backoff %v below base %v", got, base)
		}
		if got > time.Duration(float64(base)*1.1)+time.Millisecond {
			t.Fatalf("jittered backoff %v above base*1.1", got)
		}
	}

	if got := jitteredBackoff(base, 0); got != base {
		t.Errorf("zero jitter should return base, got %v", got)
	}
}

func TestConfigNormalize_Defaults(t *testing.T) {
	cfg := Config{}.normalize()
	def := DefaultConfig()

	if cfg.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Errorf("RetryMaxAttempts = %d, want %d", cfg.RetryMaxAttempts, def.RetryMaxAttempts)
	}
	if cfg.RetryInitialBackoff != def.RetryInitialBackoff {
		t.Errorf("RetryInitialBackoff = %v, want %v", cfg.RetryInitialBackoff, def.RetryInitialBackoff)
	}
	if cfg.RetryMaxBackoff != def.RetryMaxBackoff {
		t.Errorf("RetryMaxBackoff = %v, want %v", cfg.RetryMaxBackoff, def.RetryMaxBackoff)
	}
	if cfg.RetryJitter != def.RetryJitter {
		t.Errorf("RetryJitter = %v, want %v", cfg.RetryJitter, def.RetryJitter)
	}

	// Max backoff must never undercut the initial backoff.
	cfg = Config{RetryInitialBackoff: time.Minute, RetryMaxBackoff: time.Second}.normalize()
	if cfg.RetryMaxBackoff != time.Minute {
		t.Errorf("RetryMaxBackoff = %v, want raised to initial backoff", cfg.RetryMaxBackoff)
	}

	// Burst defaults to 1 when a rate is set.
	cfg = Config{RateLimit: 10}.normalize()
	if cfg.RateBurst != 1 {
		t.Errorf("RateBurst = %d, want 1", cfg.RateBurst)
	}
}
