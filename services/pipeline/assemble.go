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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/docgen"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// GraphName labels assembled graphs in logs, spans, and metrics.
const GraphName = "fir_analysis"

// Pipeline assembles analysis graphs. Immutable after New.
type Pipeline struct {
	deps Deps
}

// New creates a Pipeline over the given dependencies.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Deps exposes the pipeline's dependency set, for callers that share it
// (e.g. the corpus ingest handler reusing the retriever).
func (p *Pipeline) Deps() Deps {
	return p.deps
}

// Request describes one analysis run.
type Request struct {
	RunID    string
	Filename string

	// PDF holds the uploaded document on a fresh run; nil on a section
	// extension run, which seeds from Stored instead.
	PDF []byte

	// Sections the caller requested. Empty means all.
	Sections []string

	// Stored carries the prior record when extending a finished analysis.
	Stored *Stored
}

// Stored is the persisted outcome of an earlier run used to seed an
// extension: document metadata plus the section payloads it produced.
// Raw document text is never stored, so text-dependent nodes run against
// text reconstructed from the facts payload.
type Stored struct {
	Meta     datatypes.DocumentMeta
	Payloads map[string]json.RawMessage
}

// Assemble builds the execution graph and seeded state for a request.
//
// # Description
//
// The graph contains the nodes producing the requested sections plus
// every transitive dependency, with the report node as terminal. For
// extension runs the state is pre-seeded: stored section payloads become
// completed node outputs, read_pdf is satisfied with the stored metadata,
// and translate with text rendered from the stored facts. The executor
// then runs only what is missing.
//
// # Outputs
//   - Graph and state ready for Executor.RunFromState.
//   - Error for unknown section identifiers, a missing facts payload on
//     extension, or graph validation failure.
func (p *Pipeline) Assemble(req Request) (*workflow.Graph, *workflow.State, error) {
	sections, err := NormalizeSections(req.Sections)
	if err != nil {
		return nil, nil, err
	}

	reportSections := sections
	if req.Stored != nil {
		reportSections = mergeSections(sections, storedSections(req.Stored.Payloads))
	}

	nodes := p.buildNodes(reportSections)
	names := dependencyClosure(nodes, NodeReport)

	builder := workflow.NewBuilder(GraphName)
	for _, name := range names {
		builder.AddNode(nodes[name])
	}
	graph, err := builder.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("assemble graph: %w", err)
	}

	state := workflow.NewState(req.RunID)
	if req.Stored != nil {
		if err := seedFromStored(state, req.Stored); err != nil {
			return nil, nil, err
		}
	} else {
		state.SetInput(Upload{Filename: req.Filename, Data: req.PDF})
	}

	return graph, state, nil
}

// buildNodes constructs every pipeline node, keyed by name.
func (p *Pipeline) buildNodes(reportSections []string) map[string]workflow.Node {
	nodes := []workflow.Node{
		NewReadPDFNode(p.deps),
		NewTranslateNode(p.deps),
		NewFactsNode(p.deps),
		NewInvestigationPlanNode(p.deps),
		NewEvidenceChecklistNode(p.deps),
		NewDosDontsNode(p.deps),
		NewWeaknessesNode(p.deps),
		NewTimelineNode(p.deps),
		NewCourtSummaryNode(p.deps),
		NewChargesheetNode(p.deps),
		NewHistoricalCasesNode(p.deps),
		NewReportNode(p.deps, reportSections),
	}
	for _, act := range Acts {
		nodes = append(nodes, NewStatuteMappingNode(p.deps, act))
	}

	byName := make(map[string]workflow.Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name()] = n
	}
	return byName
}

// dependencyClosure returns the names of root and everything it
// transitively depends on, sorted for deterministic graph construction.
func dependencyClosure(nodes map[string]workflow.Node, root string) []string {
	visited := make(map[string]bool)
	queue := []string{root}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		if node, ok := nodes[name]; ok {
			queue = append(queue, node.Dependencies()...)
		}
	}

	names := make([]string, 0, len(visited))
	for name := range visited {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// seedFromStored marks nodes satisfied by a prior run as completed.
func seedFromStored(state *workflow.State, stored *Stored) error {
	data, err := docgen.FromPayloads(stored.Meta, nil, stored.Payloads)
	if err != nil {
		return fmt.Errorf("seed from stored payloads: %w", err)
	}
	if data.Facts == nil {
		return fmt.Errorf("stored workflow has no facts payload; cannot extend it")
	}

	state.SetInput(Upload{Filename: stored.Meta.Filename})
	state.SetCompleted(NodeReadPDF, Document{Meta: stored.Meta})
	state.SetCompleted(NodeTranslate, Translated{
		Text:             renderFactsText(*data.Facts),
		DetectedLanguage: stored.Meta.DetectedLanguage,
		Translated:       stored.Meta.Translated,
		FromFacts:        true,
	})

	has := func(id string) bool {
		_, ok := stored.Payloads[id]
		return ok
	}

	state.SetCompleted(NodeFacts, *data.Facts)
	for _, m := range data.Mappings {
		state.SetCompleted(MappingNodeName(m.Act), m)
	}
	if has(datatypes.SectionInvestigation) && data.Plan != nil {
		state.SetCompleted(NodeInvestigationPlan, *data.Plan)
	}
	if has(datatypes.SectionEvidence) {
		state.SetCompleted(NodeEvidenceChecklist, data.Checklist)
	}
	if has(datatypes.SectionDosDonts) && data.DosDonts != nil {
		state.SetCompleted(NodeDosDonts, *data.DosDonts)
	}
	if has(datatypes.SectionWeaknesses) {
		state.SetCompleted(NodeWeaknesses, data.Weaknesses)
	}
	if has(datatypes.SectionTimeline) {
		state.SetCompleted(NodeTimeline, data.Timeline)
	}
	if has(datatypes.SectionCourtSummary) {
		state.SetCompleted(NodeCourtSummary, data.CourtSummary)
	}
	if has(datatypes.SectionChargesheet) {
		state.SetCompleted(NodeChargesheet, data.Chargesheet)
	}
	if has(datatypes.SectionHistoricalCases) {
		state.SetCompleted(NodeHistoricalCases, data.Cases)
	}
	return nil
}

// storedSections lists the section ids present in stored payloads, in
// canonical order.
func storedSections(payloads map[string]json.RawMessage) []string {
	var out []string
	for _, id := range datatypes.AllSections {
		if _, ok := payloads[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// mergeSections unions two normalized section lists, preserving canonical
// order.
func mergeSections(a, b []string) []string {
	want := make(map[string]bool, len(a)+len(b))
	for _, id := range a {
		want[id] = true
	}
	for _, id := range b {
		want[id] = true
	}
	out := make([]string, 0, len(want))
	for _, id := range datatypes.AllSections {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}

// SectionPayloads extracts from a run state the payload for every section
// whose producing nodes all completed. Keys are section ids; values are
// the datatypes payloads the results API serializes.
func SectionPayloads(state *workflow.State) map[string]any {
	out := make(map[string]any)
	for _, id := range datatypes.AllSections {
		switch id {
		case datatypes.SectionFacts:
			if v, ok := stateOutput[datatypes.FIRFacts](state, NodeFacts); ok {
				out[id] = v
			}
		case datatypes.SectionStatutes:
			mappings := make([]datatypes.ActMapping, 0, len(Acts))
			complete := true
			for _, act := range Acts {
				v, ok := stateOutput[datatypes.ActMapping](state, MappingNodeName(act))
				if !ok {
					complete = false
					break
				}
				mappings = append(mappings, v)
			}
			if complete {
				out[id] = mappings
			}
		case datatypes.SectionInvestigation:
			if v, ok := stateOutput[datatypes.InvestigationPlan](state, NodeInvestigationPlan); ok {
				out[id] = v
			}
		case datatypes.SectionEvidence:
			if v, ok := stateOutput[[]string](state, NodeEvidenceChecklist); ok {
				out[id] = v
			}
		case datatypes.SectionDosDonts:
			if v, ok := stateOutput[datatypes.DosDonts](state, NodeDosDonts); ok {
				out[id] = v
			}
		case datatypes.SectionWeaknesses:
			if v, ok := stateOutput[string](state, NodeWeaknesses); ok {
				out[id] = v
			}
		case datatypes.SectionTimeline:
			if v, ok := stateOutput[[]datatypes.TimelineEvent](state, NodeTimeline); ok {
				out[id] = v
			}
		case datatypes.SectionCourtSummary:
			if v, ok := stateOutput[string](state, NodeCourtSummary); ok {
				out[id] = v
			}
		case datatypes.SectionChargesheet:
			if v, ok := stateOutput[string](state, NodeChargesheet); ok {
				out[id] = v
			}
		case datatypes.SectionHistoricalCases:
			if v, ok := stateOutput[[]datatypes.HistoricalCase](state, NodeHistoricalCases); ok {
				out[id] = v
			}
		}
	}
	return out
}

// DocumentMetaFromState recovers the document metadata recorded by the
// run, merging what the translator detected.
func DocumentMetaFromState(state *workflow.State) (datatypes.DocumentMeta, bool) {
	doc, ok := stateOutput[Document](state, NodeReadPDF)
	if !ok {
		return datatypes.DocumentMeta{}, false
	}
	meta := doc.Meta
	if tr, ok := stateOutput[Translated](state, NodeTranslate); ok {
		meta.DetectedLanguage = tr.DetectedLanguage
		meta.Translated = tr.Translated
	}
	return meta, true
}

// ReportFromState recovers the generated report document, if the report
// node completed.
func ReportFromState(state *workflow.State) (datatypes.ReportDocument, bool) {
	return stateOutput[datatypes.ReportDocument](state, NodeReport)
}

// DocumentTextFromState exposes the extracted document text as it left the
// PDF reader, before translation or redaction touched it. Second return is
// false when the read node has not completed or carried no text.
func DocumentTextFromState(state *workflow.State) (string, bool) {
	doc, ok := stateOutput[Document](state, NodeReadPDF)
	if !ok || doc.Text == "" {
		return "", false
	}
	return doc.Text, true
}

// TranslatedTextFromState exposes the English text of the current run for
// privacy scanning. Second return is false when the translate node has
// not completed.
func TranslatedTextFromState(state *workflow.State) (string, bool) {
	tr, ok := stateOutput[Translated](state, NodeTranslate)
	if !ok {
		return "", false
	}
	return tr.Text, true
}

func stateOutput[T any](state *workflow.State, node string) (T, bool) {
	var zero T
	raw, ok := state.GetOutput(node)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
