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

	"github.com/sashabaranov/go-openai"
)

// Embedder turns text chunks into vectors for the statute corpus.
// Implementations must preserve input order: vector i belongs to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// --- OpenAI Embedder ---

type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder() (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "text-embedding-3-large"
		slog.Warn("EMBEDDING_MODEL not set, defaulting to text-embedding-3-large")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	slog.Info("Initializing OpenAI embedder", "model", model)
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  openai.EmbeddingModel(model),
	}, nil
}

// Embed implements the Embedder interface
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		slog.Error("OpenAI embeddings call failed", "error", err)
		return nil, fmt.Errorf("OpenAI embeddings call failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// Data carries an Index field; place by index rather than trusting order.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("OpenAI returned embedding with out-of-range index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// --- Ollama Embedder ---

// OllamaEmbedder embeds through a local Ollama server so corpus ingestion
// can run fully inside the station network.
type OllamaEmbedder struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewOllamaEmbedder() (*OllamaEmbedder, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
		slog.Warn("EMBEDDING_MODEL not set, defaulting to nomic-embed-text")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama embedder", "base_url", baseURL, "model", model)
	return &OllamaEmbedder{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

// Embed implements the Embedder interface
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embedURL := e.baseURL + "/api/embed"
	payload := ollamaEmbedRequest{Model: e.model, Input: texts}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request to Ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", embedURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		slog.Error("Ollama embed call failed", "error", err)
		return nil, fmt.Errorf("Ollama embed call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embed response from Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Ollama embed returned an error", "status_code", resp.StatusCode, "response", string(respBody))
		return nil, fmt.Errorf("ollama embed failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("failed to parse embed response from Ollama: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("Ollama returned %d embeddings for %d inputs", len(embedResp.Embeddings), len(texts))
	}
	return embedResp.Embeddings, nil
}
