// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

func testPipeline() *Pipeline {
	return New(Deps{LLM: llm.NewMockClient()})
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestNormalizeSections_EmptyMeansAll(t *testing.T) {
	t.Parallel()

	got, err := NormalizeSections(nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.AllSections, got)

	// Blank entries collapse to the full set too.
	got, err = NormalizeSections([]string{"", "  "})
	require.NoError(t, err)
	assert.Equal(t, datatypes.AllSections, got)
}

func TestNormalizeSections_CanonicalOrderAndDedup(t *testing.T) {
	t.Parallel()

	got, err := NormalizeSections([]string{"timeline", "FACTS", " timeline "})
	require.NoError(t, err)
	assert.Equal(t, []string{datatypes.SectionFacts, datatypes.SectionTimeline}, got)
}

func TestNormalizeSections_UnknownSection(t *testing.T) {
	t.Parallel()

	_, err := NormalizeSections([]string{"facts", "palmistry"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown section "palmistry"`)
}

// TestAssemble_FullGraph verifies that an unrestricted request produces
// the complete sixteen-node graph with the report as terminal.
func TestAssemble_FullGraph(t *testing.T) {
	t.Parallel()

	graph, state, err := testPipeline().Assemble(Request{
		RunID:    "run-1",
		Filename: "fir.pdf",
		PDF:      []byte("%PDF-1.4"),
	})
	require.NoError(t, err)

	assert.Equal(t, 16, graph.NodeCount())
	assert.Equal(t, NodeReport, graph.Terminal())
	for _, name := range []string{
		NodeReadPDF, NodeTranslate, NodeFacts,
		NodeInvestigationPlan, NodeEvidenceChecklist, NodeDosDonts,
		NodeWeaknesses, NodeTimeline, NodeCourtSummary, NodeChargesheet,
		NodeHistoricalCases, NodeReport,
	} {
		assert.True(t, graph.HasNode(name), "missing node %s", name)
	}
	for _, name := range MappingNodeNames() {
		assert.True(t, graph.HasNode(name), "missing node %s", name)
	}

	up, ok := state.GetOutput(workflow.RootInputKey)
	require.True(t, ok)
	assert.Equal(t, "fir.pdf", up.(Upload).Filename)
}

// TestAssemble_SubsetClosure verifies that requesting one section pulls in
// only its transitive dependencies.
func TestAssemble_SubsetClosure(t *testing.T) {
	t.Parallel()

	graph, _, err := testPipeline().Assemble(Request{
		RunID:    "run-2",
		Filename: "fir.pdf",
		PDF:      []byte("%PDF-1.4"),
		Sections: []string{"timeline"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{NodeReadPDF, NodeTranslate, NodeFacts, NodeTimeline, NodeReport},
		graph.NodeNames(),
	)
}

func TestAssemble_StatutesClosure(t *testing.T) {
	t.Parallel()

	graph, _, err := testPipeline().Assemble(Request{
		RunID:    "run-3",
		Filename: "fir.pdf",
		PDF:      []byte("%PDF-1.4"),
		Sections: []string{"statutes"},
	})
	require.NoError(t, err)

	want := append([]string{NodeReadPDF, NodeTranslate, NodeFacts, NodeReport}, MappingNodeNames()...)
	assert.ElementsMatch(t, want, graph.NodeNames())
}

func TestAssemble_UnknownSection(t *testing.T) {
	t.Parallel()

	_, _, err := testPipeline().Assemble(Request{
		RunID:    "run-4",
		Filename: "fir.pdf",
		PDF:      []byte("%PDF-1.4"),
		Sections: []string{"horoscope"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown section")
}

// TestAssemble_ExtensionSeedsStoredOutputs verifies the extension path:
// stored payloads become completed node outputs, the document text is
// reconstructed from the stored facts, and the report covers the union of
// stored and newly requested sections.
func TestAssemble_ExtensionSeedsStoredOutputs(t *testing.T) {
	t.Parallel()

	facts := datatypes.FIRFacts{
		FIRNumber:      "127/2025",
		PoliceStation:  "Hauz Khas",
		OffenceSummary: "Recovery of 12 kg ganja from a parked truck.",
	}
	stored := &Stored{
		Meta: datatypes.DocumentMeta{
			Filename:         "fir.pdf",
			DetectedLanguage: "hi",
			Translated:       true,
		},
		Payloads: map[string]json.RawMessage{
			datatypes.SectionFacts: mustMarshal(t, facts),
			datatypes.SectionTimeline: mustMarshal(t, []datatypes.TimelineEvent{
				{When: "14.03.2025", Event: "Truck intercepted"},
			}),
		},
	}

	graph, state, err := testPipeline().Assemble(Request{
		RunID:    "run-ext",
		Sections: []string{"court_summary"},
		Stored:   stored,
	})
	require.NoError(t, err)

	for _, name := range []string{NodeReadPDF, NodeTranslate, NodeFacts, NodeTimeline} {
		assert.True(t, state.IsCompleted(name), "expected %s seeded", name)
	}
	assert.False(t, state.IsCompleted(NodeCourtSummary))
	assert.False(t, state.IsCompleted(NodeReport))

	// court_summary pulls in the mappings and the plan.
	assert.True(t, graph.HasNode(NodeCourtSummary))
	assert.True(t, graph.HasNode(NodeInvestigationPlan))
	for _, name := range MappingNodeNames() {
		assert.True(t, graph.HasNode(name))
	}

	// Translate output is rebuilt from the stored facts, never raw text.
	tr, ok := stateOutput[Translated](state, NodeTranslate)
	require.True(t, ok)
	assert.True(t, tr.FromFacts)
	assert.Contains(t, tr.Text, "127/2025")
	assert.Equal(t, "hi", tr.DetectedLanguage)

	// The report must cover stored sections as well as the new one.
	report, ok := graph.GetNode(NodeReport)
	require.True(t, ok)
	assert.Contains(t, report.Dependencies(), NodeTimeline)
	assert.Contains(t, report.Dependencies(), NodeCourtSummary)
}

func TestAssemble_ExtensionRequiresFactsPayload(t *testing.T) {
	t.Parallel()

	_, _, err := testPipeline().Assemble(Request{
		RunID:    "run-ext-2",
		Sections: []string{"timeline"},
		Stored: &Stored{
			Meta: datatypes.DocumentMeta{Filename: "fir.pdf"},
			Payloads: map[string]json.RawMessage{
				datatypes.SectionWeaknesses: mustMarshal(t, "some text"),
			},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "facts payload")
}

func TestSectionPayloads(t *testing.T) {
	t.Parallel()

	state := workflow.NewState("run-5")
	state.SetCompleted(NodeFacts, datatypes.FIRFacts{FIRNumber: "9/2025"})
	state.SetCompleted(NodeTimeline, []datatypes.TimelineEvent{{When: "x", Event: "y"}})

	payloads := SectionPayloads(state)
	assert.Contains(t, payloads, datatypes.SectionFacts)
	assert.Contains(t, payloads, datatypes.SectionTimeline)
	assert.NotContains(t, payloads, datatypes.SectionStatutes)

	// Statutes appear only once every act mapping completed.
	for _, act := range Acts[:len(Acts)-1] {
		state.SetCompleted(MappingNodeName(act), datatypes.ActMapping{Act: act})
	}
	assert.NotContains(t, SectionPayloads(state), datatypes.SectionStatutes)

	last := Acts[len(Acts)-1]
	state.SetCompleted(MappingNodeName(last), datatypes.ActMapping{Act: last})
	payloads = SectionPayloads(state)
	require.Contains(t, payloads, datatypes.SectionStatutes)
	mappings := payloads[datatypes.SectionStatutes].([]datatypes.ActMapping)
	assert.Len(t, mappings, len(Acts))
	assert.Equal(t, Acts[0], mappings[0].Act)
}

func TestDocumentMetaFromState(t *testing.T) {
	t.Parallel()

	state := workflow.NewState("run-6")
	_, ok := DocumentMetaFromState(state)
	assert.False(t, ok)

	state.SetCompleted(NodeReadPDF, Document{
		Meta: datatypes.DocumentMeta{Filename: "fir.pdf", Pages: 3},
	})
	state.SetCompleted(NodeTranslate, Translated{
		Text:             "text",
		DetectedLanguage: "te",
		Translated:       true,
	})

	meta, ok := DocumentMetaFromState(state)
	require.True(t, ok)
	assert.Equal(t, "fir.pdf", meta.Filename)
	assert.Equal(t, 3, meta.Pages)
	assert.Equal(t, "te", meta.DetectedLanguage)
	assert.True(t, meta.Translated)
}

func TestMappingNodeNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"ndps_mapping", "bns_mapping", "bnss_mapping", "bsa_mapping"},
		MappingNodeNames(),
	)
	act, ok := actForMappingNode("bnss_mapping")
	require.True(t, ok)
	assert.Equal(t, "BNSS", act)
	_, ok = actForMappingNode("report")
	assert.False(t, ok)
}
