// Package search finds published case material related to an FIR through
// the Tavily web search API.
package search

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
)

const (
	defaultBaseURL = "https://api.tavily.com/search"

	// Advanced depth returns raw page content, which the pipeline
	// summarizes per result.
	defaultSearchDepth = "advanced"
	defaultMaxResults  = 5
)

type tavilyRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query        string         `json:"query"`
	Results      []tavilyResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

type tavilyResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

// Result is one web hit. RawContent is the full page text when the
// provider could fetch it, otherwise empty and Content holds the snippet.
type Result struct {
	Title      string
	URL        string
	Content    string
	RawContent string
	Score      float64
}

// Searcher is the seam the historical-cases pipeline node depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// --- Client Implementation ---

type TavilyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewTavilyClient() (*TavilyClient, error) {
	apiKey := os.Getenv("TAVILY_API_KEY")

	// 1. Robust Secret Loading
	if apiKey == "" {
		secretPath := "/run/secrets/tavily_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read Tavily API Key from Podman Secrets")
		}
	}

	// 2. Graceful Failure
	if apiKey == "" {
		slog.Warn("Tavily API Key is missing.")
		return nil, fmt.Errorf("TAVILY_API_KEY is missing")
	}

	return &TavilyClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}, nil
}

// Search implements the Searcher interface.
//
// The query is LLM-crafted from FIR content, so it never appears in logs;
// only sizes and counts are recorded.
func (t *TavilyClient) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	reqPayload := tavilyRequest{
		Query:             query,
		SearchDepth:       defaultSearchDepth,
		MaxResults:        defaultMaxResults,
		IncludeRawContent: true,
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Sending REST request to Tavily", "query_length", len(query))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	slog.Debug("Raw Tavily Response", "status", resp.StatusCode, "body_length", len(bodyBytes))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp tavilyResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	results := make([]Result, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		results = append(results, Result{
			Title:      r.Title,
			URL:        r.URL,
			Content:    r.Content,
			RawContent: r.RawContent,
			Score:      r.Score,
		})
	}

	slog.Debug("Tavily search completed", "result_count", len(results))
	return results, nil
}

var _ Searcher = (*TavilyClient)(nil)
