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

import "time"

// Config tunes retry, circuit breaker, and rate limiting behavior for an
// Executor.
//
// The zero value is usable: normalize() fills every unset field with the
// defaults below, which match the analysis pipeline's tolerance for flaky
// LLM backends (long exponential backoff, generous attempt budget).
type Config struct {
	// RetryMaxAttempts is the maximum number of attempts (including the
	// initial call). Default: 5.
	RetryMaxAttempts int

	// RetryInitialBackoff is the wait before the first retry. Default: 1s.
	RetryInitialBackoff time.Duration

	// RetryMaxBackoff caps the wait between retries. Default: 60s.
	RetryMaxBackoff time.Duration

	// RetryMultiplier is the exponential backoff factor. Default: 2.0.
	RetryMultiplier float64

	// RetryJitter is the maximum extra wait as a fraction of the backoff,
	// drawn uniformly from [0, RetryJitter]. Prevents synchronized retries
	// across parallel pipeline nodes. Default: 0.1.
	RetryJitter float64

	// BreakerEnabled turns the per-operation circuit breaker on.
	BreakerEnabled bool

	// BreakerMinRequests is the minimum observation window before the
	// breaker may trip. Default: 10.
	BreakerMinRequests uint32

	// BreakerFailureRatio trips the breaker when failures/requests meets
	// it. Default: 0.5.
	BreakerFailureRatio float64

	// BreakerOpenTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	BreakerOpenTimeout time.Duration

	// BreakerHalfOpenMaxCalls limits probe calls while half-open.
	// Default: 2.
	BreakerHalfOpenMaxCalls uint32

	// RateLimit caps sustained calls per second across all operations on
	// this Executor. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket burst size when RateLimit is set.
	// Default: 1.
	RateBurst int
}

// DefaultConfig returns the retry profile used by the analysis pipeline.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 1 * time.Second,
		RetryMaxBackoff:     60 * time.Second,
		RetryMultiplier:     2.0,
		RetryJitter:         0.1,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.RetryJitter < 0 || out.RetryJitter > 1 {
		out.RetryJitter = def.RetryJitter
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	if out.RateLimit > 0 && out.RateBurst <= 0 {
		out.RateBurst = 1
	}

	return out
}
