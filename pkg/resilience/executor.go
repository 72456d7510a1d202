// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package resilience wraps outbound calls to LLM backends, the vector
// store, and external search with retry, circuit breaking, and rate
// limiting.
//
// Pipeline nodes share one Executor per dependency. The retry profile
// follows the analysis pipeline defaults: up to 5 attempts with
// exponential backoff from 1s capped at 60s, plus up to 10% jitter so
// parallel statute-mapping nodes don't retry in lockstep.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrorClassification tells the Executor how to treat a failure.
type ErrorClassification struct {
	// Retryable allows another attempt after backoff.
	Retryable bool

	// RecordFailure counts the error toward tripping the circuit breaker.
	// Context cancellations and client-side validation errors usually
	// should not trip the breaker.
	RecordFailure bool
}

// ErrorClassifier inspects an error from one attempt.
type ErrorClassifier func(err error) ErrorClassification

// Executor runs operations with retry, per-operation circuit breakers,
// and an optional shared rate limiter.
//
// Safe for concurrent use.
type Executor struct {
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewExecutor builds an Executor from cfg, filling unset fields with the
// pipeline defaults.
func NewExecutor(cfg Config) *Executor {
	return NewExecutorWithLogger(cfg, slog.Default())
}

// NewExecutorWithLogger is NewExecutor with an explicit logger for retry
// and breaker state-change warnings.
func NewExecutorWithLogger(cfg Config, logger *slog.Logger) *Executor {
	cfg = cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return e
}

// Execute runs fn under the executor's policy. The operation name keys
// the circuit breaker and appears in retry logs; use stable names like
// "llm.chat" or "weaviate.query".
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, op, fn, classifier)
	}

	breaker := e.circuitBreaker(op, classifier)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, op, fn, classifier)
	})
	return err
}

func (e *Executor) executeWithRetry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	maxAttempts := e.cfg.RetryMaxAttempts
	backoff := e.cfg.RetryInitialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		class := classifier(err)
		if !class.Retryable || attempt == maxAttempts {
			return err
		}

		wait := jitteredBackoff(backoff, e.cfg.RetryJitter)
		if wait > e.cfg.RetryMaxBackoff {
			wait = e.cfg.RetryMaxBackoff
		}
		e.logger.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}

		backoff = time.Duration(float64(backoff) * e.cfg.RetryMultiplier)
		if backoff > e.cfg.RetryMaxBackoff {
			backoff = e.cfg.RetryMaxBackoff
		}
	}

	return nil
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			class := classifier(err)
			return !class.RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change",
				"operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// jitteredBackoff stretches base by a uniform draw from [0, jitter].
// Jitter is additive only: the wait never lands below base, so the
// backoff floor the backend expects is preserved.
func jitteredBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	multiplier := 1.0 + rand.Float64()*jitter
	return time.Duration(float64(base) * multiplier)
}

// IsCircuitOpen reports whether err came from an open or throttled breaker
// rather than the operation itself.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Transient marks errors retryable and breaker-visible. Use for timeouts,
// 5xx responses, and connection failures.
func Transient() ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

// Permanent marks errors non-retryable and invisible to the breaker. Use
// for validation failures and 4xx responses, where retrying cannot help
// and the dependency is healthy.
func Permanent() ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: false}
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
