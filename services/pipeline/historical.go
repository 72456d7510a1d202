// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/search"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

const (
	// Prompt input bounds keep question generation and per-case
	// summarization inside model context limits.
	maxQuestionInputRunes = 5000
	maxSummaryInputRunes  = 3000

	summarizeParallelism = 4
)

// HistoricalCasesNode finds published judgments similar to the FIR: one
// LLM-crafted search question, a web search, then a short summary per hit.
type HistoricalCasesNode struct {
	workflow.BaseNode
	deps Deps
}

// NewHistoricalCasesNode builds the historical cases node.
func NewHistoricalCasesNode(deps Deps) *HistoricalCasesNode {
	return &HistoricalCasesNode{
		BaseNode: workflow.BaseNode{
			NodeName:         NodeHistoricalCases,
			NodeDependencies: []string{NodeTranslate, NodeFacts},
			NodeTimeout:      10 * time.Minute,
		},
		deps: deps,
	}
}

const searchQuestionPrompt = `Based on the following FIR content, form 1 question that I can search on the internet to find historical cases related to this FIR.

FIR Content:
%s

Generate a specific search question that will help find similar historical legal cases.

Return a JSON object: {"question": "..."}`

const caseSummaryPrompt = `Summarize the following legal case content in 2-3 sentences, focusing on key facts, legal issues, and outcomes:

%s`

type searchQuestionResponse struct {
	Question string `json:"question"`
}

// Execute searches for similar cases and summarizes each hit. Without a
// configured search backend the node succeeds with an empty list.
func (n *HistoricalCasesNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	if n.deps.Searcher == nil {
		n.deps.logger().Info("historical cases skipped: web search not configured")
		return []datatypes.HistoricalCase{}, nil
	}

	text, err := firText(inputs)
	if err != nil {
		return nil, err
	}

	q, err := generateJSON[searchQuestionResponse](ctx, n.deps, "cases.question",
		fmt.Sprintf(searchQuestionPrompt, truncateRunes(text, maxQuestionInputRunes)))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Question) == "" {
		return nil, fmt.Errorf("historical_cases: model returned empty search question")
	}

	results, err := n.deps.webSearch(ctx, q.Question)
	if err != nil {
		return nil, fmt.Errorf("historical_cases: web search failed: %w", err)
	}

	cases := make([]datatypes.HistoricalCase, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summarizeParallelism)
	for i, r := range results {
		g.Go(func() error {
			cases[i] = datatypes.HistoricalCase{
				Title:   r.Title,
				URL:     r.URL,
				Summary: n.summarize(gctx, r),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n.deps.logger().Info("historical cases found",
		slog.Int("cases", len(cases)),
	)

	return cases, nil
}

// summarize condenses one search hit. Summarization failures degrade to a
// placeholder rather than failing the whole node.
func (n *HistoricalCasesNode) summarize(ctx context.Context, r search.Result) string {
	content := r.RawContent
	if strings.TrimSpace(content) == "" {
		content = r.Content
	}
	if strings.TrimSpace(content) == "" {
		return ""
	}

	summary, err := n.deps.generate(ctx, "cases.summarize",
		fmt.Sprintf(caseSummaryPrompt, truncateRunes(content, maxSummaryInputRunes)),
		llm.GenerationParams{})
	if err != nil {
		n.deps.logger().Warn("case summarization failed",
			slog.String("title", r.Title),
			slog.String("error", err.Error()),
		)
		return "Summary unavailable"
	}
	return strings.TrimSpace(summary)
}
