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

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

const maxDosDontsItems = 10

// DosDontsNode produces procedural dos and don'ts for the investigating
// officer handling this case.
type DosDontsNode struct {
	workflow.BaseNode
	deps Deps
}

// NewDosDontsNode builds the dos/don'ts node.
func NewDosDontsNode(deps Deps) *DosDontsNode {
	return &DosDontsNode{
		BaseNode: workflow.BaseNode{
			NodeName: NodeDosDonts,
			NodeDependencies: append(
				[]string{NodeTranslate, NodeEvidenceChecklist},
				MappingNodeNames()...,
			),
			NodeTimeout: 5 * time.Minute,
		},
		deps: deps,
	}
}

const dosDontsPrompt = `You are advising the investigating officer on procedural conduct for this case.

FIR Content:
%s

%s

Evidence to be Collected:
%s

Task:
Produce two lists for the investigating officer: things they MUST do and things they MUST NOT do while investigating this case.

Rules:
- Every item must be specific to this case and the sections above, not generic police advice.
- Dos cover mandatory procedural steps, evidence handling, and statutory timelines.
- Don'ts cover procedural lapses that would weaken the prosecution or invite challenge.
- At most %d items in each list. Each item is one sentence.

Return a JSON object: {"dos": ["...", ...], "donts": ["...", ...]}`

// Execute produces the two advisory lists.
func (n *DosDontsNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	text, err := firText(inputs)
	if err != nil {
		return nil, err
	}
	mappings := mappingsFromInputs(inputs)
	checklist, _ := checklistFromInputs(inputs)

	resp, err := generateJSON[datatypes.DosDonts](ctx, n.deps, "dos_donts",
		fmt.Sprintf(dosDontsPrompt,
			text,
			renderMappedSections(mappings),
			bulletList(checklist),
			maxDosDontsItems,
		))
	if err != nil {
		return nil, err
	}

	if len(resp.Dos) > maxDosDontsItems {
		resp.Dos = resp.Dos[:maxDosDontsItems]
	}
	if len(resp.Donts) > maxDosDontsItems {
		resp.Donts = resp.Donts[:maxDosDontsItems]
	}

	n.deps.logger().Info("dos and don'ts generated",
		slog.Int("dos", len(resp.Dos)),
		slog.Int("donts", len(resp.Donts)),
	)

	return resp, nil
}
