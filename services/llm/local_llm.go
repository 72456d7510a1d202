package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

type LocalLlamaCppClient struct {
	httpClient *http.Client
	baseURL    string
}

type LocalLlamaCppClientPayload struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

func NewLocalLlamaCppClient() (*LocalLlamaCppClient, error) {
	baseURL := os.Getenv("LLM_SERVICE_URL_BASE")
	if baseURL == "" {
		return nil, fmt.Errorf("LLM_SERVICE_URL_BASE environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &LocalLlamaCppClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
	}, nil
}

// Generate implements the LLMClient interface
func (l *LocalLlamaCppClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	completionURL := l.baseURL + "/completion"
	payload := LocalLlamaCppClientPayload{Prompt: prompt}
	if params.MaxTokens != nil {
		payload.NPredict = *params.MaxTokens
	} else {
		payload.NPredict = 2048
	}
	if params.Temperature != nil {
		payload.Temperature = params.Temperature
	} else {
		var defaultTemperature float32 = 0.2
		payload.Temperature = &defaultTemperature
	}
	if params.TopK != nil {
		payload.TopK = params.TopK
	} else {
		defaultTopK := 20
		payload.TopK = &defaultTopK
	}
	if params.TopP != nil {
		payload.TopP = params.TopP
	} else {
		var defaultTopP float32 = 0.9
		payload.TopP = &defaultTopP
	}
	// No default stop sequence: analysis sections span many lines.
	if params.Stop != nil {
		payload.Stop = params.Stop
	}

	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal the payload %w", err)
	}
	slog.Info("Calling Llama.cpp Generate", "url", completionURL)
	req, err := http.NewRequestWithContext(ctx, "POST", completionURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create a request to the llm: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make a request to the llm: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read the llm's response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llama.cpp server failed with status %d: %s", resp.StatusCode, string(body))
	}
	var llmResponseBody llamaCppResp
	if err := json.Unmarshal(body, &llmResponseBody); err != nil {
		return "", fmt.Errorf("failed to parse the llm response %w", err)
	}
	return llmResponseBody.Content, nil
}

type llamaCppResp struct {
	Content string `json:"content"`
}

// Chat implements the LLMClient interface. The llama.cpp /completion
// endpoint has no chat template, so the conversation is flattened into a
// single role-prefixed prompt.
func (l *LocalLlamaCppClient) Chat(ctx context.Context, messages []datatypes.Message,
	params GenerationParams) (string, error) {

	var sb strings.Builder
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		case "assistant":
			sb.WriteString("Assistant: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		default:
			sb.WriteString("User: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Assistant: ")
	return l.Generate(ctx, sb.String(), params)
}
