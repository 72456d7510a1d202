// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// =============================================================================
// Mock Server Helpers
// =============================================================================

// newMockOllamaServer creates a test server standing in for an Ollama
// instance. The caller must Close() it.
func newMockOllamaServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

// newTestOllamaClient creates an OllamaClient pointing to a test server,
// bypassing environment variable configuration.
func newTestOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		model:      model,
	}
}

// =============================================================================
// Generate Tests
// =============================================================================

// TestOllamaGenerate_Success tests a plain completion round trip.
//
// # Description
//
// Verifies that Generate posts to /api/generate with the configured model
// and returns the response field of the body.
func TestOllamaGenerate_Success(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("Expected model test-model, got %s", req.Model)
		}
		if req.Stream {
			t.Error("Generate should not request streaming")
		}
		if req.Prompt != "Summarize the FIR" {
			t.Errorf("Unexpected prompt: %s", req.Prompt)
		}
		fmt.Fprintln(w, `{"model":"test-model","response":"generated text","done":true}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")

	got, err := client.Generate(context.Background(), "Summarize the FIR", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "generated text" {
		t.Errorf("Expected 'generated text', got '%s'", got)
	}
}

// TestOllamaGenerate_DefaultOptions tests option defaults.
//
// # Description
//
// Verifies that unset generation params fall back to the conservative
// extraction defaults.
func TestOllamaGenerate_DefaultOptions(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		captured, _ = body["options"].(map[string]any)
		fmt.Fprintln(w, `{"response":"ok","done":true}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	if _, err := client.Generate(context.Background(), "x", GenerationParams{}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if captured == nil {
		t.Fatal("Request carried no options")
	}
	if captured["temperature"] != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", captured["temperature"])
	}
	if captured["top_k"] != float64(20) {
		t.Errorf("Expected top_k 20, got %v", captured["top_k"])
	}
	if captured["top_p"] != 0.9 {
		t.Errorf("Expected top_p 0.9, got %v", captured["top_p"])
	}
	if captured["num_predict"] != float64(8192) {
		t.Errorf("Expected num_predict 8192, got %v", captured["num_predict"])
	}
}

// TestOllamaGenerate_JSONMode tests the structured output flag.
//
// # Description
//
// Verifies that JSONMode sets format=json on the request so the model is
// constrained to a single JSON document.
func TestOllamaGenerate_JSONMode(t *testing.T) {
	t.Parallel()

	var format string
	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		format, _ = body["format"].(string)
		fmt.Fprintln(w, `{"response":"{}","done":true}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	if _, err := client.Generate(context.Background(), "x", GenerationParams{JSONMode: true}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if format != "json" {
		t.Errorf("Expected format json, got %q", format)
	}
}

// TestOllamaGenerate_ModelNotFound tests the friendly pull hint.
//
// # Description
//
// Verifies that a 404 model-not-found response is turned into an error
// telling the operator which model to pull.
func TestOllamaGenerate_ModelNotFound(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"error":"model 'missing-model' not found"}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "missing-model")
	_, err := client.Generate(context.Background(), "x", GenerationParams{})
	if err == nil {
		t.Fatal("Generate should return error for missing model")
	}
	if !strings.Contains(err.Error(), "ollama pull missing-model") {
		t.Errorf("Error should suggest pulling the model, got: %v", err)
	}
}

// TestOllamaGenerate_ServerError tests HTTP error propagation.
func TestOllamaGenerate_ServerError(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	_, err := client.Generate(context.Background(), "x", GenerationParams{})
	if err == nil {
		t.Fatal("Generate should return error for server error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Error should contain status code, got: %v", err)
	}
}

// TestOllamaGenerate_ContextCancelled tests cancellation handling.
func TestOllamaGenerate_ContextCancelled(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprintln(w, `{"response":"too late","done":true}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, "x", GenerationParams{})
	if err == nil {
		t.Fatal("Generate should return error on context cancellation")
	}
}

// =============================================================================
// Chat Tests
// =============================================================================

// TestOllamaChat_Success tests a chat round trip.
//
// # Description
//
// Verifies that Chat posts the full message history to /api/chat and
// returns the assistant message content.
func TestOllamaChat_Success(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(req.Messages))
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Section 20 applies"},"done":true}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	messages := []datatypes.Message{
		{Role: "system", Content: "You are an expert in Indian NDPS law."},
		{Role: "user", Content: "Which section covers possession?"},
	}

	got, err := client.Chat(context.Background(), messages, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if got != "Section 20 applies" {
		t.Errorf("Expected 'Section 20 applies', got '%s'", got)
	}
}

// TestOllamaChat_NonAssistantRole tests tolerance of odd response roles.
//
// # Description
//
// A response with an unexpected role is logged but still returned; the
// content is what matters downstream.
func TestOllamaChat_NonAssistantRole(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"tool","content":"odd but usable"},"done":true}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	got, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "x"},
	}, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if got != "odd but usable" {
		t.Errorf("Expected content to pass through, got '%s'", got)
	}
}

// TestOllamaChat_ServerError tests HTTP error propagation for chat.
func TestOllamaChat_ServerError(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintln(w, `{"error":"upstream gone"}`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "x"},
	}, GenerationParams{})
	if err == nil {
		t.Fatal("Chat should return error for server error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("Error should contain status code, got: %v", err)
	}
}

// TestOllamaChat_MalformedResponse tests JSON parse failure handling.
func TestOllamaChat_MalformedResponse(t *testing.T) {
	t.Parallel()

	server := newMockOllamaServer(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{not json`)
	})
	defer server.Close()

	client := newTestOllamaClient(server.URL, "test-model")
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "x"},
	}, GenerationParams{})
	if err == nil {
		t.Fatal("Chat should return error for malformed response")
	}
}
