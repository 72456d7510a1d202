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

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/sashabaranov/go-openai"
)

// newTestOpenAIClient creates an OpenAIClient pointing to a test server
// through the configurable gateway base URL.
func newTestOpenAIClient(baseURL string) *OpenAIClient {
	config := openai.DefaultConfig("test-key")
	config.BaseURL = baseURL + "/v1"
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  "test-model",
	}
}

// TestOpenAIChat_Success tests a chat round trip through the gateway.
func TestOpenAIChat_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if body["model"] != "test-model" {
			t.Errorf("Expected model test-model, got %v", body["model"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(msgs))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"mapped sections"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := newTestOpenAIClient(server.URL)
	got, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "system", Content: "You are an expert in Indian criminal law."},
		{Role: "user", Content: "Map these facts"},
	}, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if got != "mapped sections" {
		t.Errorf("Expected 'mapped sections', got '%s'", got)
	}
}

// TestOpenAIGenerate_AddsSystemPersona tests the Generate wrapper.
//
// # Description
//
// Generate prepends the persona system message and sends the prompt as a
// user turn.
func TestOpenAIGenerate_AddsSystemPersona(t *testing.T) {
	var captured []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		for _, m := range body["messages"].([]any) {
			captured = append(captured, m.(map[string]any))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := newTestOpenAIClient(server.URL)
	if _, err := client.Generate(context.Background(), "extract facts", GenerationParams{}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if len(captured) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(captured))
	}
	if captured[0]["role"] != "system" {
		t.Errorf("First message should be the system persona, got %v", captured[0]["role"])
	}
	if captured[1]["role"] != "user" || captured[1]["content"] != "extract facts" {
		t.Errorf("Second message should carry the prompt, got %+v", captured[1])
	}
}

// TestOpenAIChat_JSONMode tests response_format passthrough.
func TestOpenAIChat_JSONMode(t *testing.T) {
	t.Parallel()

	var format map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		format, _ = body["response_format"].(map[string]any)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"choices":[{"message":{"role":"assistant","content":"{}"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := newTestOpenAIClient(server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "x"},
	}, GenerationParams{JSONMode: true})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if format == nil || format["type"] != "json_object" {
		t.Errorf("Expected response_format json_object, got %v", format)
	}
}

// TestOpenAIChat_NoChoices tests the empty choices guard.
func TestOpenAIChat_NoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := newTestOpenAIClient(server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "x"},
	}, GenerationParams{})
	if err == nil {
		t.Fatal("Chat should return error when no choices are returned")
	}
}

// TestOpenAIChat_APIError tests error propagation from the API.
func TestOpenAIChat_APIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintln(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := newTestOpenAIClient(server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "x"},
	}, GenerationParams{})
	if err == nil {
		t.Fatal("Chat should return error for API error")
	}
}
