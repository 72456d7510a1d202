// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// TestSectionExtensionRun drives the full extension path: a finished
// analysis holding only facts gains a timeline. Seeded nodes must not
// re-run; only the timeline node hits the LLM.
func TestSectionExtensionRun(t *testing.T) {
	mock := llm.NewMockClient().WithResponseFunc(func(prompt string, _ llm.GenerationParams) (string, error) {
		return `{"timeline": [{"when": "2025-03-01 22:15", "event": "Vehicle stopped at checkpoint"}]}`, nil
	})
	deps := newTestDeps(t, mock)
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-ext")

	req := httptest.NewRequest("POST", "/api/sections/wf-ext",
		strings.NewReader(`{"sections":["timeline"]}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	deps.Runner.Wait()

	rec, err := deps.Store.Get(t.Context(), "wf-ext")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.Empty(t, rec.Error)
	assert.Contains(t, rec.Sections, datatypes.SectionTimeline)
	require.True(t, rec.HasSection(datatypes.SectionTimeline))

	var events []datatypes.TimelineEvent
	require.NoError(t, json.Unmarshal(rec.Payloads[datatypes.SectionTimeline], &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Vehicle stopped at checkpoint", events[0].Event)

	// Facts survived the extension untouched.
	require.True(t, rec.HasSection(datatypes.SectionFacts))

	// One LLM call: the timeline node. Seeded nodes must not re-run.
	assert.Equal(t, 1, mock.CallCount())
}

// TestRunnerSealsCompletedRun verifies a successful run leaves a
// verifiable state seal on the record, with the sensitive node outputs
// stripped before sealing.
func TestRunnerSealsCompletedRun(t *testing.T) {
	mock := llm.NewMockClient().WithResponseFunc(func(string, llm.GenerationParams) (string, error) {
		return `{"timeline": [{"when": "2025-03-01", "event": "Checkpoint stop"}]}`, nil
	})
	deps := newTestDeps(t, mock)
	seedCompleted(t, deps, "wf-seal")

	rec, err := deps.Store.Get(t.Context(), "wf-seal")
	require.NoError(t, err)

	deps.Runner.Start(pipeline.Request{
		RunID:    "wf-seal",
		Filename: rec.Meta.Filename,
		Sections: []string{datatypes.SectionTimeline},
		Stored:   &pipeline.Stored{Meta: rec.Meta, Payloads: rec.Payloads},
	})
	deps.Runner.Wait()

	rec, err = deps.Store.Get(t.Context(), "wf-seal")
	require.NoError(t, err)
	require.Equal(t, store.StatusCompleted, rec.Status)
	require.NotEmpty(t, rec.Snapshot)

	snap, err := workflow.UnmarshalSnapshot(rec.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, pipeline.GraphName, snap.GraphName)
	assert.Contains(t, snap.State.NodeOutputs, pipeline.NodeTimeline)
	assert.Contains(t, snap.State.NodeOutputs, pipeline.NodeFacts)

	// Raw document text and rendered report bytes never reach the store.
	assert.NotContains(t, snap.State.NodeOutputs, workflow.RootInputKey)
	assert.NotContains(t, snap.State.NodeOutputs, pipeline.NodeReadPDF)
	assert.NotContains(t, snap.State.NodeOutputs, pipeline.NodeTranslate)
	assert.NotContains(t, snap.State.NodeOutputs, pipeline.NodeReport)
}

// TestRunnerReportsOutcomeToExtensions drives a run with in-memory audit
// seams installed and checks the lifecycle event and per-section chain
// entries.
func TestRunnerReportsOutcomeToExtensions(t *testing.T) {
	mock := llm.NewMockClient().WithResponseFunc(func(string, llm.GenerationParams) (string, error) {
		return `{"timeline": [{"when": "2025-03-01", "event": "Checkpoint stop"}]}`, nil
	})
	deps := newTestDeps(t, mock)
	audit := &extensions.MemoryAuditLogger{}
	chain := extensions.NewLocalRequestAuditor()
	deps.Runner.WithExtensions(extensions.DefaultOptions().WithAudit(audit).WithRequestAuditor(chain))
	seedCompleted(t, deps, "wf-audit")

	rec, err := deps.Store.Get(t.Context(), "wf-audit")
	require.NoError(t, err)

	deps.Runner.Start(pipeline.Request{
		RunID:    "wf-audit",
		Filename: rec.Meta.Filename,
		Sections: []string{datatypes.SectionTimeline},
		Stored:   &pipeline.Stored{Meta: rec.Meta, Payloads: rec.Payloads},
	})
	deps.Runner.Wait()

	events, err := audit.Query(t.Context(), extensions.AuditFilter{
		EventTypes: []string{"workflow.complete"},
		ResourceID: "wf-audit",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "system", events[0].UserID)
	assert.Equal(t, "success", events[0].Outcome)

	// One chain link per generated section: the seeded facts plus the
	// new timeline.
	length, err := chain.GetChainLength(t.Context(), "wf-audit")
	require.NoError(t, err)
	assert.Equal(t, 2, length)

	verification, err := chain.VerifyChain(t.Context(), "wf-audit")
	require.NoError(t, err)
	assert.True(t, verification.IsValid)
}

// TestRunnerAuditsFailure checks that a failed run is reported as such.
func TestRunnerAuditsFailure(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	audit := &extensions.MemoryAuditLogger{}
	deps.Runner.WithExtensions(extensions.DefaultOptions().WithAudit(audit))
	seedRunning(t, deps, "wf-sad")

	deps.Runner.Start(pipeline.Request{
		RunID:    "wf-sad",
		Filename: "fir.pdf",
		PDF:      []byte("not a pdf"),
		Sections: []string{datatypes.SectionFacts},
	})
	deps.Runner.Wait()

	events, err := audit.Query(t.Context(), extensions.AuditFilter{
		EventTypes: []string{"workflow.failed"},
		ResourceID: "wf-sad",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "failure", events[0].Outcome)
	assert.NotEmpty(t, events[0].Metadata["error"])
}

// TestRunnerPersistsFailure checks that a failing run records its error
// and node timings.
func TestRunnerPersistsFailure(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	seedRunning(t, deps, "wf-fail")

	deps.Runner.Start(pipeline.Request{
		RunID:    "wf-fail",
		Filename: "fir.pdf",
		PDF:      []byte("definitely not a pdf"),
		Sections: []string{datatypes.SectionFacts},
	})
	deps.Runner.Wait()

	rec, err := deps.Store.Get(t.Context(), "wf-fail")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)
	assert.False(t, rec.CompletedAt.IsZero())
}

// TestRunnerPublishesCompletionAfterPersist ensures subscribers observe
// workflow_completed only once the record has its final status, so a
// page reload always finds the outcome.
func TestRunnerPublishesCompletionAfterPersist(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	seedRunning(t, deps, "wf-order")

	events, cancel := deps.Hub.Subscribe("wf-order")
	defer cancel()

	deps.Runner.Start(pipeline.Request{
		RunID:    "wf-order",
		Filename: "fir.pdf",
		PDF:      []byte("junk"),
		Sections: []string{datatypes.SectionFacts},
	})

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for workflow_completed")
		case ev := <-events:
			if ev.Type != workflow.EventWorkflowCompleted {
				continue
			}
			rec, err := deps.Store.Get(t.Context(), "wf-order")
			require.NoError(t, err)
			assert.False(t, rec.Running(), "record must be final before completion event")
			return
		}
	}
}
