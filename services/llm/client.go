package llm

import (
	"context"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// GenerationParams defines the parameters for an LLM generation request.
// All fields are optional; backends fill in their own defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// JSONMode asks the backend to constrain the response to a single JSON
	// document where the provider supports it (OpenAI response_format,
	// Ollama format). Backends without native support ignore it; callers
	// parse the result with DecodeJSON either way.
	JSONMode bool `json:"json_mode,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}
