// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// ===== Test Helpers =====

// stubEmbedder returns the same vector for every input text.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  [][]string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, texts)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func newTestWeaviateClient(t *testing.T, serverURL string) *weaviate.Client {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)

	client, err := weaviate.NewClient(weaviate.Config{Host: u.Host, Scheme: u.Scheme})
	require.NoError(t, err)
	return client
}

// newGraphQLServer answers every POST /v1/graphql with the given body and
// captures the raw GraphQL query string for assertions.
func newGraphQLServer(t *testing.T, responseBody string, captured *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/graphql" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if captured != nil {
			*captured = req.Query
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(responseBody))
	}))
}

// ===== Search Tests =====

func TestSearchStatutes_NilClient(t *testing.T) {
	r := NewWeaviateRetriever(nil, &stubEmbedder{vector: []float32{0.1}})

	_, err := r.SearchStatutes(context.Background(), "possession of contraband", ActNDPS, 5)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
}

func TestSearchGuidelines_NilClient(t *testing.T) {
	r := NewWeaviateRetriever(nil, &stubEmbedder{vector: []float32{0.1}})

	_, err := r.SearchGuidelines(context.Background(), "sampling of seized narcotics", 5)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
}

func TestSearchStatutes_Success(t *testing.T) {
	body := `{"data":{"Get":{"StatuteSection":[
		{"act":"NDPS","section_number":"20","subsection":"(b)(ii)(C)",
		 "chapter":"IV","chapter_heading":"Offences and Penalties",
		 "content":"Whoever contravenes any provision in relation to cannabis...",
		 "page_number":12,"source_url":"https://example.org/ndps.pdf",
		 "pdf_name":"ndps_act.pdf","_additional":{"certainty":0.91}},
		{"act":"NDPS","section_number":"8",
		 "content":"No person shall produce, manufacture, possess...",
		 "page_number":4,"pdf_name":"ndps_act.pdf",
		 "_additional":{"certainty":0.84}}
	]}}}`

	var captured string
	server := newGraphQLServer(t, body, &captured)
	defer server.Close()

	embedder := &stubEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	r := NewWeaviateRetriever(newTestWeaviateClient(t, server.URL), embedder)

	chunks, err := r.SearchStatutes(context.Background(), "commercial quantity of ganja recovered", ActNDPS, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "20", chunks[0].SectionNumber)
	assert.Equal(t, "(b)(ii)(C)", chunks[0].Subsection)
	assert.Equal(t, "Offences and Penalties", chunks[0].ChapterHeading)
	assert.Equal(t, 12, chunks[0].PageNumber)
	assert.Equal(t, "ndps_act.pdf", chunks[0].PDFName)
	assert.InDelta(t, 0.91, chunks[0].Certainty, 0.001)
	assert.Equal(t, "8", chunks[1].SectionNumber)

	// One embedding call for the query itself.
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, []string{"commercial quantity of ganja recovered"}, embedder.calls[0])

	assert.Contains(t, captured, "StatuteSection")
	assert.Contains(t, captured, "nearVector")
	assert.Contains(t, captured, `"NDPS"`)
}

func TestSearchStatutes_NoActFilter(t *testing.T) {
	body := `{"data":{"Get":{"StatuteSection":[]}}}`

	var captured string
	server := newGraphQLServer(t, body, &captured)
	defer server.Close()

	r := NewWeaviateRetriever(newTestWeaviateClient(t, server.URL), &stubEmbedder{vector: []float32{0.5}})

	chunks, err := r.SearchStatutes(context.Background(), "recovery memo prepared at the scene", "", 3)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.NotContains(t, captured, "where")
}

func TestSearchStatutes_EmbedderError(t *testing.T) {
	server := newGraphQLServer(t, `{"data":{}}`, nil)
	defer server.Close()

	embedder := &stubEmbedder{err: errors.New("embedding backend down")}
	r := NewWeaviateRetriever(newTestWeaviateClient(t, server.URL), embedder)

	_, err := r.SearchStatutes(context.Background(), "seizure witnessed by panchas", ActBNS, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestSearchStatutes_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewWeaviateRetriever(newTestWeaviateClient(t, server.URL), &stubEmbedder{vector: []float32{0.5}})

	_, err := r.SearchStatutes(context.Background(), "accused fled the scene", ActBNSS, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weaviate search failed")
}

func TestSearchGuidelines_Success(t *testing.T) {
	body := `{"data":{"Get":{"ForensicGuideline":[
		{"chapter":"3","chapter_title":"Collection of Physical Evidence",
		 "headings":["Packaging","Chain of Custody"],
		 "content":"Each sample must be sealed and labelled at the scene...",
		 "page_number":41,"pdf_name":"forensic_manual.pdf",
		 "_additional":{"certainty":0.88}}
	]}}}`

	var captured string
	server := newGraphQLServer(t, body, &captured)
	defer server.Close()

	r := NewWeaviateRetriever(newTestWeaviateClient(t, server.URL), &stubEmbedder{vector: []float32{0.7}})

	chunks, err := r.SearchGuidelines(context.Background(), "sealing of seized samples", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "Collection of Physical Evidence", chunks[0].ChapterTitle)
	assert.Equal(t, []string{"Packaging", "Chain of Custody"}, chunks[0].Headings)
	assert.Equal(t, 41, chunks[0].PageNumber)
	assert.InDelta(t, 0.88, chunks[0].Certainty, 0.001)
	assert.Contains(t, captured, "ForensicGuideline")
}

// ===== Parse Tests =====

func TestParseStatuteResults_NilResponse(t *testing.T) {
	chunks, err := parseStatuteResults(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestParseStatuteResults_MissingCertainty(t *testing.T) {
	var resp models.GraphQLResponse
	raw := `{"data":{"Get":{"StatuteSection":[
		{"act":"BSA","section_number":"63","content":"Admissibility of electronic records."}
	]}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	chunks, err := parseStatuteResults(&resp)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "BSA", chunks[0].Act)
	assert.Zero(t, chunks[0].Certainty)
}

func TestParseGuidelineResults_EmptyData(t *testing.T) {
	var resp models.GraphQLResponse
	require.NoError(t, json.Unmarshal([]byte(`{"data":{}}`), &resp))

	chunks, err := parseGuidelineResults(&resp)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestActTitles_CoverAllActs(t *testing.T) {
	for _, act := range []string{ActNDPS, ActBNS, ActBNSS, ActBSA} {
		title, ok := ActTitles[act]
		assert.True(t, ok, "missing title for act %s", act)
		assert.NotEmpty(t, title)
	}
}

func TestSearchStatutes_LimitDefaulted(t *testing.T) {
	var captured string
	server := newGraphQLServer(t, `{"data":{"Get":{"StatuteSection":[]}}}`, &captured)
	defer server.Close()

	r := NewWeaviateRetriever(newTestWeaviateClient(t, server.URL), &stubEmbedder{vector: []float32{0.5}})

	_, err := r.SearchStatutes(context.Background(), "contraband concealed in vehicle", ActNDPS, 0)
	require.NoError(t, err)
	assert.Contains(t, strings.ReplaceAll(captured, " ", ""), "limit:5")
}
