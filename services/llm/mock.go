// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// MockClient is a scriptable LLM client for testing pipeline steps
// without a model behind them.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.RWMutex

	// responses are queued responses returned in order.
	responses []string

	// defaultResponse is returned when no queued responses remain.
	defaultResponse string

	// responseFunc allows dynamic response generation keyed on the prompt.
	responseFunc func(prompt string, params GenerationParams) (string, error)

	// calls records every Generate and Chat invocation.
	calls []MockCall

	// delay adds artificial latency to responses.
	delay time.Duration

	// errorToReturn causes calls to return this error.
	errorToReturn error
}

// MockCall records a single call made to the mock.
type MockCall struct {
	Prompt    string
	Messages  []datatypes.Message
	Params    GenerationParams
	Timestamp time.Time
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{
		defaultResponse: "mock response",
		calls:           make([]MockCall, 0),
	}
}

// WithDelay adds artificial latency.
func (c *MockClient) WithDelay(d time.Duration) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// WithError configures the client to return an error.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	return c
}

// WithResponseFunc sets a dynamic response function.
func (c *MockClient) WithResponseFunc(f func(prompt string, params GenerationParams) (string, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// QueueResponse adds a response to the queue.
func (c *MockClient) QueueResponse(response string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	return c
}

// SetDefaultResponse sets the response to return when the queue is empty.
func (c *MockClient) SetDefaultResponse(response string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultResponse = response
	return c
}

// Generate implements the LLMClient interface.
func (c *MockClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {
	return c.respond(ctx, MockCall{Prompt: prompt, Params: params, Timestamp: time.Now()}, prompt)
}

// Chat implements the LLMClient interface. The last user message stands
// in for the prompt when a response function is configured.
func (c *MockClient) Chat(ctx context.Context, messages []datatypes.Message,
	params GenerationParams) (string, error) {
	prompt := ""
	for _, msg := range messages {
		if msg.Role == "user" {
			prompt = msg.Content
		}
	}
	return c.respond(ctx, MockCall{Prompt: prompt, Messages: messages, Params: params, Timestamp: time.Now()}, prompt)
}

func (c *MockClient) respond(ctx context.Context, call MockCall, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, call)

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if c.errorToReturn != nil {
		return "", c.errorToReturn
	}

	if c.responseFunc != nil {
		return c.responseFunc(prompt, call.Params)
	}

	if len(c.responses) > 0 {
		response := c.responses[0]
		c.responses = c.responses[1:]
		return response, nil
	}

	return c.defaultResponse, nil
}

// CallCount returns the number of calls made.
func (c *MockClient) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// GetCalls returns all recorded calls.
func (c *MockClient) GetCalls() []MockCall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	calls := make([]MockCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// LastPrompt returns the prompt of the most recent call.
func (c *MockClient) LastPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.calls) == 0 {
		return ""
	}
	return c.calls[len(c.calls)-1].Prompt
}

// Reset clears all state.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responses = nil
	c.calls = make([]MockCall, 0)
	c.errorToReturn = nil
	c.responseFunc = nil
	c.delay = 0
}

// Verify ensures all queued responses were consumed.
func (c *MockClient) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.responses) > 0 {
		return fmt.Errorf("mock: %d queued responses not consumed", len(c.responses))
	}
	return nil
}

// ExpectCall returns an error if the expected number of calls wasn't made.
func (c *MockClient) ExpectCall(count int) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.calls) != count {
		return fmt.Errorf("mock: expected %d calls, got %d", count, len(c.calls))
	}
	return nil
}
