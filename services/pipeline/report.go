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
	"log/slog"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/docgen"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// ReportNode renders the downloadable report document from the generated
// sections. It is the terminal node of every graph; its dependency list is
// computed from the sections the report must contain.
type ReportNode struct {
	workflow.BaseNode
	deps     Deps
	sections []string
}

// NewReportNode builds the report node for the given sections (canonical
// order, as returned by NormalizeSections).
func NewReportNode(deps Deps, sections []string) *ReportNode {
	nodeDeps := []string{NodeReadPDF, NodeTranslate}
	seen := map[string]bool{NodeReadPDF: true, NodeTranslate: true}
	for _, id := range sections {
		for _, name := range SectionNodes(id) {
			if !seen[name] {
				seen[name] = true
				nodeDeps = append(nodeDeps, name)
			}
		}
	}

	return &ReportNode{
		BaseNode: workflow.BaseNode{
			NodeName:         NodeReport,
			NodeDependencies: nodeDeps,
			NodeTimeout:      2 * time.Minute,
		},
		deps:     deps,
		sections: sections,
	}
}

// Execute assembles the report data from dependency outputs and renders
// the document.
func (n *ReportNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	doc, err := documentFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	meta := doc.Meta
	if tr, err := translatedFromInputs(inputs); err == nil {
		meta.DetectedLanguage = tr.DetectedLanguage
		meta.Translated = tr.Translated
	}

	data := docgen.ReportData{
		Meta:        meta,
		Sections:    n.sections,
		GeneratedAt: time.Now().UTC(),
	}

	for _, id := range n.sections {
		switch id {
		case datatypes.SectionFacts:
			if facts, err := factsFromInputs(inputs); err == nil {
				data.Facts = &facts
			}
		case datatypes.SectionStatutes:
			data.Mappings = mappingsFromInputs(inputs)
		case datatypes.SectionInvestigation:
			if plan, ok := planFromInputs(inputs); ok {
				data.Plan = &plan
			}
		case datatypes.SectionEvidence:
			if items, ok := checklistFromInputs(inputs); ok {
				data.Checklist = items
			}
		case datatypes.SectionDosDonts:
			if dd, ok := inputs[NodeDosDonts].(datatypes.DosDonts); ok {
				data.DosDonts = &dd
			}
		case datatypes.SectionWeaknesses:
			if s, ok := inputs[NodeWeaknesses].(string); ok {
				data.Weaknesses = s
			}
		case datatypes.SectionTimeline:
			if events, ok := inputs[NodeTimeline].([]datatypes.TimelineEvent); ok {
				data.Timeline = events
			}
		case datatypes.SectionCourtSummary:
			if s, ok := inputs[NodeCourtSummary].(string); ok {
				data.CourtSummary = s
			}
		case datatypes.SectionChargesheet:
			if s, ok := inputs[NodeChargesheet].(string); ok {
				data.Chargesheet = s
			}
		case datatypes.SectionHistoricalCases:
			if cases, ok := inputs[NodeHistoricalCases].([]datatypes.HistoricalCase); ok {
				data.Cases = cases
			}
		}
	}

	report, err := docgen.BuildReport(data)
	if err != nil {
		return nil, err
	}

	n.deps.logger().Info("report document generated",
		slog.String("filename", report.Filename),
		slog.Int("bytes", len(report.Bytes)),
		slog.Int("sections", len(n.sections)),
	)

	return report, nil
}
