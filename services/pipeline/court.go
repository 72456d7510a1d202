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
	"strings"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// CourtSummaryNode writes the brief a public prosecutor reads before first
// presenting the case in court.
type CourtSummaryNode struct {
	workflow.BaseNode
	deps Deps
}

// NewCourtSummaryNode builds the court summary node.
func NewCourtSummaryNode(deps Deps) *CourtSummaryNode {
	return &CourtSummaryNode{
		BaseNode: workflow.BaseNode{
			NodeName: NodeCourtSummary,
			NodeDependencies: append(
				[]string{NodeFacts, NodeInvestigationPlan},
				MappingNodeNames()...,
			),
			NodeTimeout: 5 * time.Minute,
		},
		deps: deps,
	}
}

const courtSummaryPrompt = `You are a public prosecutor preparing a summary of this case for first presentation in court.

Case Facts:
%s

Applicable Sections:
%s

Investigation Plan:
%s

Task:
Write the case summary the prosecutor will read from: what happened, who is accused, under which sections, and the current state of the investigation.

Rules:
- Formal courtroom register, third person, no argumentation.
- State only facts on record; mark anything pending verification as such.
- Cite sections with their act names.
- Write in Markdown, four to six short paragraphs.

Return the Markdown text only, no preamble.`

// Execute produces the summary as Markdown text.
func (n *CourtSummaryNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	facts, err := factsFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	mappings := mappingsFromInputs(inputs)
	plan, _ := planFromInputs(inputs)

	out, err := n.deps.generate(ctx, "court_summary",
		fmt.Sprintf(courtSummaryPrompt,
			renderFactsText(facts),
			renderMappedSections(mappings),
			plan.Plan,
		), llm.GenerationParams{})
	if err != nil {
		return nil, err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, fmt.Errorf("court_summary: model returned empty summary")
	}

	n.deps.logger().Info("court summary generated")

	return out, nil
}

// ChargesheetNode drafts the skeleton of the final report filed under
// BNSS Section 193 once the investigation completes.
type ChargesheetNode struct {
	workflow.BaseNode
	deps Deps
}

// NewChargesheetNode builds the chargesheet node.
func NewChargesheetNode(deps Deps) *ChargesheetNode {
	return &ChargesheetNode{
		BaseNode: workflow.BaseNode{
			NodeName: NodeChargesheet,
			NodeDependencies: append(
				[]string{NodeFacts, NodeInvestigationPlan},
				MappingNodeNames()...,
			),
			NodeTimeout: 5 * time.Minute,
		},
		deps: deps,
	}
}

const chargesheetPrompt = `You are drafting the chargesheet skeleton for this case for filing before the jurisdictional court.

Case Facts:
%s

Applicable Sections:
%s

Investigation Plan:
%s

Task:
Draft the chargesheet structure: parties, sections charged, brief facts, list of witnesses, list of documents and material objects relied upon, and the prayer.

Rules:
- Follow the conventional chargesheet layout with numbered headings.
- Fill each heading from the material above; where the investigation has not yet produced an item, write "To be supplied on completion of investigation".
- Cite every charged section with its act name.
- Write in Markdown.

Return the Markdown text only, no preamble.`

// Execute produces the chargesheet draft as Markdown text.
func (n *ChargesheetNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	facts, err := factsFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	mappings := mappingsFromInputs(inputs)
	plan, _ := planFromInputs(inputs)

	out, err := n.deps.generate(ctx, "chargesheet",
		fmt.Sprintf(chargesheetPrompt,
			renderFactsText(facts),
			renderMappedSections(mappings),
			plan.Plan,
		), llm.GenerationParams{})
	if err != nil {
		return nil, err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, fmt.Errorf("chargesheet: model returned empty draft")
	}

	n.deps.logger().Info("chargesheet draft generated")

	return out, nil
}
