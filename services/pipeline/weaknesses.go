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

// WeaknessesNode identifies weaknesses in the prosecution case that the
// defence is likely to exploit, so the investigation can close them early.
type WeaknessesNode struct {
	workflow.BaseNode
	deps Deps
}

// NewWeaknessesNode builds the weaknesses node.
func NewWeaknessesNode(deps Deps) *WeaknessesNode {
	return &WeaknessesNode{
		BaseNode: workflow.BaseNode{
			NodeName: NodeWeaknesses,
			NodeDependencies: append(
				[]string{NodeTranslate, NodeFacts, NodeInvestigationPlan, NodeEvidenceChecklist},
				MappingNodeNames()...,
			),
			NodeTimeout: 5 * time.Minute,
		},
		deps: deps,
	}
}

const weaknessesPrompt = `You are a senior prosecutor reviewing this case file for weaknesses before trial.

FIR Content:
%s

Case Facts:
%s

%s

Planned Investigation Steps:
%s

Evidence to be Collected:
%s

Task:
Identify the weaknesses in the prosecution case as it stands: missing evidence, procedural gaps, contradictions in the FIR, delays, and sections that may not survive scrutiny.

Rules:
- Only raise weaknesses supported by the material above; do not speculate about facts not in the record.
- For each weakness, state what the defence will argue and what the investigation can still do about it.
- Write in Markdown with a short heading per weakness followed by one or two paragraphs.
- Order weaknesses from most to least damaging.

Return the Markdown text only, no preamble.`

// Execute produces the weaknesses assessment as Markdown text.
func (n *WeaknessesNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	text, err := firText(inputs)
	if err != nil {
		return nil, err
	}
	facts, err := factsFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	mappings := mappingsFromInputs(inputs)
	plan, _ := planFromInputs(inputs)
	checklist, _ := checklistFromInputs(inputs)

	out, err := n.deps.generate(ctx, "weaknesses",
		fmt.Sprintf(weaknessesPrompt,
			text,
			renderFactsText(facts),
			renderMappedSections(mappings),
			bulletList(plan.NextSteps),
			bulletList(checklist),
		), llm.GenerationParams{})
	if err != nil {
		return nil, err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, fmt.Errorf("weaknesses: model returned empty assessment")
	}

	n.deps.logger().Info("prosecution weaknesses assessed")

	return out, nil
}
