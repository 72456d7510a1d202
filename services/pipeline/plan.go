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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/retrieval"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// noGuidanceContext stands in for retrieved forensic text when the
// guideline corpus is missing or returns nothing.
const noGuidanceContext = "No specific procedural guidance available from forensic guide."

// InvestigationPlanNode produces a grounded investigation plan.
//
// # Description
//
// Three stages: summarize the FIR into 5-6 procedure-affecting points,
// retrieve forensic guideline chunks for each point (k=5, deduplicated by
// content), and have the LLM turn the retrieved guidance into a Markdown
// plan plus at most eight concrete next steps for the investigating
// officer. A missing guideline corpus is tolerated; the plan falls back
// to standard procedure.
type InvestigationPlanNode struct {
	workflow.BaseNode
	deps Deps
}

// NewInvestigationPlanNode builds the plan node.
func NewInvestigationPlanNode(deps Deps) *InvestigationPlanNode {
	return &InvestigationPlanNode{
		BaseNode: workflow.BaseNode{
			NodeName: NodeInvestigationPlan,
			// Runs after every act mapping completes, matching the
			// convergence point of the analysis graph.
			NodeDependencies: append([]string{NodeTranslate}, MappingNodeNames()...),
			NodeTimeout:      10 * time.Minute,
		},
		deps: deps,
	}
}

const summaryPointsPrompt = `You are extracting structured facts from an FIR for a criminal investigation.

Rules:
- Extract only facts explicitly stated.
- Do NOT infer, assume, or add.
- Each point must affect legal procedure.
- Keep to 5-6 points only.

Examples:
- "Accused found in possession of 10 kg ganja"
- "Seizure occurred at railway station"
- "Samples were not drawn at spot"
- "Accused is juvenile"

FIR Text:
%s

Return a JSON object: {"summary_points": ["point 1", "point 2", ...]} with only 5-6 factual points.`

const planStepsPrompt = `You are generating an investigation plan for the officer handling this case.

IMPORTANT RULES:
- Use ONLY the information provided below.
- Do NOT use outside knowledge.
- Do NOT invent steps.
- Each step must be clearly supported by the content.

Case Facts:
%s

Legal / Procedural Information:
%s

Task:
Write a short investigation plan and convert the procedural information into a concise step-by-step list of actions for the Investigating Officer.

Output rules:
- plan: 2-4 Markdown paragraphs connecting the case facts to the procedure to follow
- next_steps: each step short and actionable, max 8 steps
- If no procedural guidance is available, generate general investigation steps based on standard procedure for the offences alleged

Return a JSON object: {"plan": "...markdown...", "next_steps": ["step 1", "step 2", ...]}`

type summaryPointsResponse struct {
	SummaryPoints []string `json:"summary_points"`
}

type planResponse struct {
	Plan      string   `json:"plan"`
	NextSteps []string `json:"next_steps"`
}

// Execute builds the investigation plan.
func (n *InvestigationPlanNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	text, err := firText(inputs)
	if err != nil {
		return nil, err
	}

	summary, err := generateJSON[summaryPointsResponse](ctx, n.deps, "plan.summarize",
		fmt.Sprintf(summaryPointsPrompt, text))
	if err != nil {
		return nil, err
	}
	points := summary.SummaryPoints

	ragContext := n.retrieveGuidance(ctx, points)

	resp, err := generateJSON[planResponse](ctx, n.deps, "plan.steps",
		fmt.Sprintf(planStepsPrompt, bulletList(points), ragContext))
	if err != nil {
		return nil, err
	}

	steps := resp.NextSteps
	if len(steps) > 8 {
		steps = steps[:8]
	}

	n.deps.logger().Info("investigation plan generated",
		slog.Int("summary_points", len(points)),
		slog.Int("next_steps", len(steps)),
	)

	return datatypes.InvestigationPlan{
		SummaryPoints: points,
		Plan:          resp.Plan,
		NextSteps:     steps,
	}, nil
}

// retrieveGuidance collects deduplicated forensic guideline chunks for
// each summary point. Retrieval failures degrade to the fallback context;
// the plan is still produced.
func (n *InvestigationPlanNode) retrieveGuidance(ctx context.Context, points []string) string {
	seen := make(map[string]bool)
	var unique []string
	for _, point := range points {
		chunks, err := n.deps.searchGuidelines(ctx, point)
		if err != nil {
			if !errors.Is(err, retrieval.ErrRetrievalUnavailable) {
				n.deps.logger().Warn("guideline retrieval failed",
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		for _, c := range chunks {
			if seen[c.Content] {
				continue
			}
			seen[c.Content] = true
			unique = append(unique, c.Content)
		}
	}

	if len(unique) == 0 {
		return noGuidanceContext
	}

	n.deps.logger().Debug("retrieved guideline chunks", slog.Int("unique", len(unique)))

	var b strings.Builder
	for _, c := range unique {
		fmt.Fprintf(&b, "- %s\n\n", c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimRight(b.String(), "\n")
}
