// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package orchestrator

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/handlers"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
)

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// TestApplyConfigDefaults_AllDefaults verifies default values are applied
// when an empty Config is provided.
func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, 8080, result.Port, "default port should be 8080")
	assert.Equal(t, "local", result.LLMBackend, "default LLM backend should be local")
	assert.Equal(t, "memory", result.ResultsBackend, "default results backend should be memory")
	assert.Equal(t, "./data/results", result.ResultsPath)
	assert.Equal(t, store.DefaultTTL, result.ResultsTTL)
	assert.Equal(t, int64(handlers.DefaultUploadMaxBytes), result.UploadMaxBytes)
	assert.Empty(t, result.WeaviateURL, "Weaviate has no default; empty disables retrieval")
	assert.Empty(t, result.OTelEndpoint, "OTel has no default; empty traces to stdout")
}

// TestApplyConfigDefaults_PreservesCustomValues verifies user-provided
// values are not overwritten.
func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Port:           9999,
		LLMBackend:     "openai",
		WeaviateURL:    "http://weaviate:8080",
		OTelEndpoint:   "otel-collector:4317",
		ResultsBackend: "badger",
		ResultsPath:    "/var/lib/fir/results",
		ResultsTTL:     time.Hour,
		UploadMaxBytes: 1 << 20,
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, cfg, result, "fully populated config should pass through unchanged")
}

// TestApplyConfigDefaults_PartialConfig verifies user values mix with
// defaults.
func TestApplyConfigDefaults_PartialConfig(t *testing.T) {
	result := applyConfigDefaults(Config{Port: 9999, ResultsBackend: "badger"})

	assert.Equal(t, 9999, result.Port, "custom port should be preserved")
	assert.Equal(t, "badger", result.ResultsBackend, "custom backend should be preserved")
	assert.Equal(t, "local", result.LLMBackend, "default LLM backend should be applied")
	assert.Equal(t, store.DefaultTTL, result.ResultsTTL, "default TTL should be applied")
}

// TestApplyConfigDefaults_TableDriven tests multiple config scenarios.
func TestApplyConfigDefaults_TableDriven(t *testing.T) {
	tests := []struct {
		name            string
		input           Config
		wantPort        int
		wantLLMBackend  string
		wantResultsKind string
	}{
		{
			name:            "empty config gets all defaults",
			input:           Config{},
			wantPort:        8080,
			wantLLMBackend:  "local",
			wantResultsKind: "memory",
		},
		{
			name:            "custom port preserved",
			input:           Config{Port: 8081},
			wantPort:        8081,
			wantLLMBackend:  "local",
			wantResultsKind: "memory",
		},
		{
			name:            "custom backend preserved",
			input:           Config{LLMBackend: "claude"},
			wantPort:        8080,
			wantLLMBackend:  "claude",
			wantResultsKind: "memory",
		},
		{
			name:            "badger results backend preserved",
			input:           Config{ResultsBackend: "badger"},
			wantPort:        8080,
			wantLLMBackend:  "local",
			wantResultsKind: "badger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := applyConfigDefaults(tt.input)

			assert.Equal(t, tt.wantPort, result.Port)
			assert.Equal(t, tt.wantLLMBackend, result.LLMBackend)
			assert.Equal(t, tt.wantResultsKind, result.ResultsBackend)
		})
	}
}

// TestConfig_InvalidValues tests behavior with edge case values.
func TestConfig_InvalidValues(t *testing.T) {
	t.Run("negative port is preserved", func(t *testing.T) {
		result := applyConfigDefaults(Config{Port: -1})

		// Invalid values pass through; validation is the caller's concern.
		assert.Equal(t, -1, result.Port)
	})

	t.Run("negative TTL uses default", func(t *testing.T) {
		result := applyConfigDefaults(Config{ResultsTTL: -time.Hour})

		assert.Equal(t, store.DefaultTTL, result.ResultsTTL)
	})
}

// TestNew_MockBackend builds a full service against the mock LLM backend
// and smoke-tests the wiring through Router().
func TestNew_MockBackend(t *testing.T) {
	svc, err := New(Config{
		LLMBackend: "mock",
		GinMode:    gin.TestMode,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	assert.NotNil(t, svc.Router(), "router should be configured")

	routeSet := make(map[string]bool)
	for _, r := range svc.Router().Routes() {
		routeSet[r.Method+" "+r.Path] = true
	}
	assert.True(t, routeSet["GET /health"], "health route should be registered")
	assert.True(t, routeSet["POST /upload"], "upload route should be registered")
	assert.True(t, routeSet["GET /api/results/:workflow_id"], "results route should be registered")
	assert.True(t, routeSet["GET /metrics"], "metrics route should be registered")
}

// TestNew_UnknownResultsBackend verifies an invalid store backend fails
// construction.
func TestNew_UnknownResultsBackend(t *testing.T) {
	_, err := New(Config{
		LLMBackend:     "mock",
		ResultsBackend: "redis",
		GinMode:        gin.TestMode,
	}, nil)

	assert.Error(t, err)
}

// TestNew_CustomOptionsPreserved verifies injected extension providers
// survive Normalize and are not replaced by policy engine defaults.
func TestNew_CustomOptionsPreserved(t *testing.T) {
	customAuth := &mockAuthProvider{}
	opts := extensions.DefaultOptions().WithAuth(customAuth)

	svc, err := New(Config{
		LLMBackend: "mock",
		GinMode:    gin.TestMode,
	}, &opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s := svc.(*service)
	assert.Same(t, customAuth, s.opts.AuthProvider, "custom AuthProvider should be used")
	assert.NotNil(t, s.opts.MessageFilter, "default PII filter should be installed")
}

// mockAuthProvider is a test double for AuthProvider.
type mockAuthProvider struct {
	extensions.NopAuthProvider
}
