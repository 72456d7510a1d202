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
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

// TestOpenAIEmbedder_Embed tests a batch embedding round trip.
//
// # Description
//
// Verifies that vectors are placed by the index field rather than response
// order, since the API does not guarantee ordering.
func TestOpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("Expected path /v1/embeddings, got %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		inputs, _ := body["input"].([]any)
		if len(inputs) != 2 {
			t.Errorf("Expected 2 inputs, got %d", len(inputs))
		}
		w.Header().Set("Content-Type", "application/json")
		// Deliberately out of order.
		fmt.Fprintln(w, `{"object":"list","data":[{"object":"embedding","embedding":[0.4,0.5],"index":1},{"object":"embedding","embedding":[0.1,0.2],"index":0}],"model":"text-embedding-3-large"}`)
	}))
	defer server.Close()

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	embedder := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  "text-embedding-3-large",
	}

	vectors, err := embedder.Embed(context.Background(), []string{"Section 8", "Section 20"})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.4 {
		t.Errorf("Vectors not placed by index: %v", vectors)
	}
}

// TestOpenAIEmbedder_CountMismatch tests the response count guard.
func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"object":"list","data":[{"object":"embedding","embedding":[0.1],"index":0}],"model":"m"}`)
	}))
	defer server.Close()

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	embedder := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  "m",
	}

	_, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("Embed should return error on count mismatch")
	}
}

// TestOpenAIEmbedder_EmptyInput tests the no-op path.
func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	t.Parallel()

	embedder := &OpenAIEmbedder{model: "m"}
	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed returned error for empty input: %v", err)
	}
	if vectors != nil {
		t.Errorf("Expected nil vectors for empty input, got %v", vectors)
	}
}

// TestOllamaEmbedder_Embed tests the local embedding path.
func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("Expected path /api/embed, got %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("Expected model nomic-embed-text, got %s", req.Model)
		}
		if len(req.Input) != 2 {
			t.Errorf("Expected 2 inputs, got %d", len(req.Input))
		}
		fmt.Fprintln(w, `{"embeddings":[[0.1,0.2],[0.3,0.4]]}`)
	}))
	defer server.Close()

	embedder := &OllamaEmbedder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    server.URL,
		model:      "nomic-embed-text",
	}

	vectors, err := embedder.Embed(context.Background(), []string{"possession", "transport"})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vectors) != 2 || vectors[1][1] != 0.4 {
		t.Errorf("Unexpected vectors: %v", vectors)
	}
}

// TestOllamaEmbedder_ServerError tests HTTP error propagation.
func TestOllamaEmbedder_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, `{"error":"embedding model not loaded"}`)
	}))
	defer server.Close()

	embedder := &OllamaEmbedder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    server.URL,
		model:      "nomic-embed-text",
	}

	_, err := embedder.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("Embed should return error for server error")
	}
}
