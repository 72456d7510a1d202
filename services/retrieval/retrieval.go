// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package retrieval stores and queries the statute and forensic-guideline
// corpora in Weaviate. Statute chunks for every act live in a single
// StatuteSection class and are narrowed at query time with an act filter.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
)

var tracer = otel.Tracer("fir.retrieval")

// Canonical act labels used in the StatuteSection act property. Corpus
// files and query filters must agree on these values.
const (
	ActNDPS = "NDPS"
	ActBNS  = "BNS"
	ActBNSS = "BNSS"
	ActBSA  = "BSA"
)

// ActTitles maps act labels to the statute names used in prompts and
// report headings.
var ActTitles = map[string]string{
	ActNDPS: "Narcotic Drugs and Psychotropic Substances Act, 1985",
	ActBNS:  "Bharatiya Nyaya Sanhita, 2023",
	ActBNSS: "Bharatiya Nagarik Suraksha Sanhita, 2023",
	ActBSA:  "Bharatiya Sakshya Adhiniyam, 2023",
}

// ErrRetrievalUnavailable indicates the vector store was never configured.
// Callers degrade rather than fail: statute mapping reports the corpus as
// unavailable instead of aborting the whole analysis.
var ErrRetrievalUnavailable = errors.New("retrieval: vector store not configured")

// DefaultLimit is the number of chunks returned per query when the caller
// does not ask for a specific count.
const DefaultLimit = 5

// StatuteChunk is one retrieved piece of statutory text with its citation
// metadata.
type StatuteChunk struct {
	Act            string  `json:"act"`
	SectionNumber  string  `json:"section_number"`
	Subsection     string  `json:"subsection,omitempty"`
	Chapter        string  `json:"chapter,omitempty"`
	ChapterHeading string  `json:"chapter_heading,omitempty"`
	Content        string  `json:"content"`
	PageNumber     int     `json:"page_number,omitempty"`
	SourceURL      string  `json:"source_url,omitempty"`
	PDFName        string  `json:"pdf_name,omitempty"`
	Certainty      float32 `json:"certainty,omitempty"`
}

// GuidelineChunk is one retrieved piece of forensic or procedural guidance.
type GuidelineChunk struct {
	Chapter      string   `json:"chapter,omitempty"`
	ChapterTitle string   `json:"chapter_title,omitempty"`
	Headings     []string `json:"headings,omitempty"`
	Content      string   `json:"content"`
	PageNumber   int      `json:"page_number,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	PDFName      string   `json:"pdf_name,omitempty"`
	Certainty    float32  `json:"certainty,omitempty"`
}

// Retriever is the corpus query surface the pipeline depends on. Tests
// substitute a stub; production wires WeaviateRetriever.
type Retriever interface {
	// SearchStatutes returns the statute chunks most similar to the query,
	// restricted to one act when act is non-empty.
	SearchStatutes(ctx context.Context, query string, act string, limit int) ([]StatuteChunk, error)

	// SearchGuidelines returns the forensic guideline chunks most similar
	// to the query.
	SearchGuidelines(ctx context.Context, query string, limit int) ([]GuidelineChunk, error)
}

// WeaviateRetriever implements Retriever against a Weaviate instance.
//
// # Description
//
// WeaviateRetriever embeds the query text and runs a nearVector search
// against the StatuteSection or ForensicGuideline class. Vectors are
// produced client-side (the classes are created with vectorizer "none"),
// so the same Embedder must be used for ingestion and querying.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type WeaviateRetriever struct {
	client   *weaviate.Client
	embedder llm.Embedder
}

// NewWeaviateRetriever creates a retriever over the given client and
// embedder. A nil client is allowed and makes every search return
// ErrRetrievalUnavailable.
func NewWeaviateRetriever(client *weaviate.Client, embedder llm.Embedder) *WeaviateRetriever {
	return &WeaviateRetriever{client: client, embedder: embedder}
}

// SearchStatutes retrieves statute chunks semantically similar to the query.
//
// # Description
//
// Embeds the query and searches the StatuteSection class. When act is
// non-empty the search is filtered to that act's chunks, which keeps a
// narcotics query from surfacing evidence-code sections and vice versa.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - query: The factual point to find statutory text for. Treated as
//     confidential; only its length is logged.
//   - act: Canonical act label (ActNDPS, ActBNS, ...) or "" for all acts.
//   - limit: Maximum chunks to return. Values < 1 use DefaultLimit.
//
// # Outputs
//
//   - []StatuteChunk: Matching chunks ordered by similarity (highest first).
//   - error: ErrRetrievalUnavailable when no client is configured, otherwise
//     embedding or query failures.
//
// # Limitations
//
//   - Returns an empty slice, not an error, when the corpus has no match.
//   - Assumes the act's corpus has been ingested; an empty corpus is
//     indistinguishable from no matches.
func (r *WeaviateRetriever) SearchStatutes(ctx context.Context, query string, act string, limit int) ([]StatuteChunk, error) {
	if r.client == nil {
		return nil, ErrRetrievalUnavailable
	}
	ctx, span := tracer.Start(ctx, "SearchStatutes")
	defer span.End()

	if limit < 1 {
		limit = DefaultLimit
	}
	slog.Debug("Searching statute corpus", "act", act, "query_length", len(query), "limit", limit)

	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "act"},
		{Name: "section_number"},
		{Name: "subsection"},
		{Name: "chapter"},
		{Name: "chapter_heading"},
		{Name: "content"},
		{Name: "page_number"},
		{Name: "source_url"},
		{Name: "pdf_name"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	builder := r.client.GraphQL().Get().
		WithClassName("StatuteSection").
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit)

	if act != "" {
		actFilter := filters.Where().
			WithPath([]string{"act"}).
			WithOperator(filters.Equal).
			WithValueString(act)
		builder = builder.WithWhere(actFilter)
	}

	result, err := builder.Do(ctx)
	if err != nil {
		slog.Error("Failed to search StatuteSection class", "act", act, "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	chunks, err := parseStatuteResults(result)
	if err != nil {
		return nil, err
	}
	slog.Debug("Found statute chunks", "act", act, "count", len(chunks))
	return chunks, nil
}

// SearchGuidelines retrieves forensic guideline chunks similar to the query.
//
// Same contract as SearchStatutes, without an act filter: the guideline
// manual is a single corpus.
func (r *WeaviateRetriever) SearchGuidelines(ctx context.Context, query string, limit int) ([]GuidelineChunk, error) {
	if r.client == nil {
		return nil, ErrRetrievalUnavailable
	}
	ctx, span := tracer.Start(ctx, "SearchGuidelines")
	defer span.End()

	if limit < 1 {
		limit = DefaultLimit
	}
	slog.Debug("Searching guideline corpus", "query_length", len(query), "limit", limit)

	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "chapter"},
		{Name: "chapter_title"},
		{Name: "headings"},
		{Name: "content"},
		{Name: "page_number"},
		{Name: "source_url"},
		{Name: "pdf_name"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName("ForensicGuideline").
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to search ForensicGuideline class", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	chunks, err := parseGuidelineResults(result)
	if err != nil {
		return nil, err
	}
	slog.Debug("Found guideline chunks", "count", len(chunks))
	return chunks, nil
}

func (r *WeaviateRetriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		slog.Error("Failed to embed corpus query", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}
	return vectors[0], nil
}

type statuteQueryResult struct {
	Get struct {
		StatuteSection []statuteResult `json:"StatuteSection"`
	} `json:"Get"`
}

type statuteResult struct {
	Act            string `json:"act"`
	SectionNumber  string `json:"section_number"`
	Subsection     string `json:"subsection"`
	Chapter        string `json:"chapter"`
	ChapterHeading string `json:"chapter_heading"`
	Content        string `json:"content"`
	PageNumber     int    `json:"page_number"`
	SourceURL      string `json:"source_url"`
	PDFName        string `json:"pdf_name"`
	Additional     struct {
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}

type guidelineQueryResult struct {
	Get struct {
		ForensicGuideline []guidelineResult `json:"ForensicGuideline"`
	} `json:"Get"`
}

type guidelineResult struct {
	Chapter      string   `json:"chapter"`
	ChapterTitle string   `json:"chapter_title"`
	Headings     []string `json:"headings"`
	Content      string   `json:"content"`
	PageNumber   int      `json:"page_number"`
	SourceURL    string   `json:"source_url"`
	PDFName      string   `json:"pdf_name"`
	Additional   struct {
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}

func parseStatuteResults(resp *models.GraphQLResponse) ([]StatuteChunk, error) {
	if resp == nil || resp.Data == nil {
		return []StatuteChunk{}, nil
	}

	// Marshal and unmarshal to convert map to typed struct
	jsonBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}

	var result statuteQueryResult
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statute query result: %w", err)
	}

	chunks := make([]StatuteChunk, 0, len(result.Get.StatuteSection))
	for _, item := range result.Get.StatuteSection {
		chunk := StatuteChunk{
			Act:            item.Act,
			SectionNumber:  item.SectionNumber,
			Subsection:     item.Subsection,
			Chapter:        item.Chapter,
			ChapterHeading: item.ChapterHeading,
			Content:        item.Content,
			PageNumber:     item.PageNumber,
			SourceURL:      item.SourceURL,
			PDFName:        item.PDFName,
		}
		if item.Additional.Certainty != nil {
			chunk.Certainty = *item.Additional.Certainty
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func parseGuidelineResults(resp *models.GraphQLResponse) ([]GuidelineChunk, error) {
	if resp == nil || resp.Data == nil {
		return []GuidelineChunk{}, nil
	}

	jsonBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}

	var result guidelineQueryResult
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guideline query result: %w", err)
	}

	chunks := make([]GuidelineChunk, 0, len(result.Get.ForensicGuideline))
	for _, item := range result.Get.ForensicGuideline {
		chunk := GuidelineChunk{
			Chapter:      item.Chapter,
			ChapterTitle: item.ChapterTitle,
			Headings:     item.Headings,
			Content:      item.Content,
			PageNumber:   item.PageNumber,
			SourceURL:    item.SourceURL,
			PDFName:      item.PDFName,
		}
		if item.Additional.Certainty != nil {
			chunk.Certainty = *item.Additional.Certainty
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
