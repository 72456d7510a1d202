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
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// EvidenceChecklistNode lists the evidence the prosecution must secure,
// derived from the extracted facts, the mapped sections, and the
// investigation plan.
type EvidenceChecklistNode struct {
	workflow.BaseNode
	deps Deps
}

// NewEvidenceChecklistNode builds the checklist node.
func NewEvidenceChecklistNode(deps Deps) *EvidenceChecklistNode {
	return &EvidenceChecklistNode{
		BaseNode: workflow.BaseNode{
			NodeName: NodeEvidenceChecklist,
			NodeDependencies: append(
				[]string{NodeFacts, NodeInvestigationPlan},
				MappingNodeNames()...,
			),
			NodeTimeout: 5 * time.Minute,
		},
		deps: deps,
	}
}

const evidenceChecklistPrompt = `You are preparing an evidence checklist for the prosecution of this case.

Case Facts:
%s

Applicable Sections:
%s

Investigation Next Steps:
%s

Task:
List every item of evidence the investigating officer must collect, preserve, or produce for this case to hold up in court.

Rules:
- Base each item on the facts and sections above; do not invent evidence for offences not alleged.
- Each item must be a single, concrete, checkable entry (e.g. "Seizure memo signed by two independent witnesses").
- Include documentary, physical, forensic, and witness evidence as applicable.
- Order items by when they are needed in the investigation.

Return a JSON object: {"evidence_checklist": ["item 1", "item 2", ...]}`

type evidenceResponse struct {
	EvidenceChecklist []string `json:"evidence_checklist"`
}

// Execute produces the checklist items.
func (n *EvidenceChecklistNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	facts, err := factsFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	mappings := mappingsFromInputs(inputs)
	plan, _ := planFromInputs(inputs)

	resp, err := generateJSON[evidenceResponse](ctx, n.deps, "evidence.checklist",
		fmt.Sprintf(evidenceChecklistPrompt,
			renderFactsText(facts),
			renderMappedSections(mappings),
			bulletList(plan.NextSteps),
		))
	if err != nil {
		return nil, err
	}

	n.deps.logger().Info("evidence checklist generated",
		slog.Int("items", len(resp.EvidenceChecklist)),
	)

	return resp.EvidenceChecklist, nil
}
