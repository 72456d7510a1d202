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

// FactsNode extracts the structured fact sheet every later node builds
// on: registration details, parties, the offence narrative, and the
// sections the FIR itself cites.
type FactsNode struct {
	workflow.BaseNode
	deps Deps
}

// NewFactsNode builds the fact extraction node.
func NewFactsNode(deps Deps) *FactsNode {
	return &FactsNode{
		BaseNode: workflow.BaseNode{
			NodeName:         NodeFacts,
			NodeDependencies: []string{NodeTranslate},
			NodeTimeout:      5 * time.Minute,
		},
		deps: deps,
	}
}

const factsPrompt = `You are extracting structured facts from a First Information Report (FIR) registered with Indian police.

Rules:
- Use only information explicitly written in the FIR text.
- Do NOT infer, assume, or add anything.
- Leave a field empty ("" or []) when the FIR does not state it.
- Dates and times go in the format they appear in the FIR.
- sections_cited lists only sections the FIR text itself names (e.g. "Section 8/20 NDPS Act"); do not derive new ones.

FIR Text:
%s

Return a single JSON object with exactly these keys:
{
  "fir_number": "",
  "police_station": "",
  "district": "",
  "offence_datetime": "",
  "report_datetime": "",
  "complainant": "",
  "accused": [],
  "offence_summary": "",
  "property_involved": "",
  "witnesses": [],
  "sections_cited": []
}

offence_summary is 2-4 sentences describing what the FIR alleges happened, in plain English.`

// Execute extracts the fact sheet from the FIR text.
func (n *FactsNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	text, err := firText(inputs)
	if err != nil {
		return nil, err
	}

	facts, err := generateJSON[datatypes.FIRFacts](ctx, n.deps, "facts.extract",
		fmt.Sprintf(factsPrompt, text))
	if err != nil {
		return nil, err
	}

	n.deps.logger().Info("extracted FIR facts",
		slog.String("fir_number", facts.FIRNumber),
		slog.Int("accused", len(facts.Accused)),
		slog.Int("sections_cited", len(facts.SectionsCited)),
	)

	return facts, nil
}
