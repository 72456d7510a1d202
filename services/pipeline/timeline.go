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

// TimelineNode reconstructs the chronological sequence of events from the
// FIR narrative.
type TimelineNode struct {
	workflow.BaseNode
	deps Deps
}

// NewTimelineNode builds the timeline node.
func NewTimelineNode(deps Deps) *TimelineNode {
	return &TimelineNode{
		BaseNode: workflow.BaseNode{
			NodeName:         NodeTimeline,
			NodeDependencies: []string{NodeTranslate, NodeFacts},
			NodeTimeout:      5 * time.Minute,
		},
		deps: deps,
	}
}

const timelinePrompt = `You are reconstructing the timeline of events from this FIR.

FIR Content:
%s

Case Facts:
%s

Task:
Extract every dated or sequenced event mentioned in the FIR and arrange them in chronological order, from the earliest event to the registration of the FIR.

Rules:
- Use dates and times exactly as they appear in the FIR; if an event has no date, describe its position in the sequence (e.g. "Shortly after the incident").
- One entry per event. Do not merge distinct events.
- Do not invent events that the FIR does not mention.

Return a JSON object: {"timeline": [{"when": "...", "event": "..."}, ...]}`

type timelineResponse struct {
	Timeline []datatypes.TimelineEvent `json:"timeline"`
}

// Execute extracts the ordered event list.
func (n *TimelineNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	text, err := firText(inputs)
	if err != nil {
		return nil, err
	}
	facts, err := factsFromInputs(inputs)
	if err != nil {
		return nil, err
	}

	resp, err := generateJSON[timelineResponse](ctx, n.deps, "timeline",
		fmt.Sprintf(timelinePrompt, text, renderFactsText(facts)))
	if err != nil {
		return nil, err
	}

	n.deps.logger().Info("timeline reconstructed",
		slog.Int("events", len(resp.Timeline)),
	)

	return resp.Timeline, nil
}
