// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package workflow

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestMarshalSnapshot_Basic(t *testing.T) {
	state := NewState("wf-session")
	state.SetCompleted("facts", "output-facts")
	state.SetCompleted("timeline", float64(42))

	data, err := MarshalSnapshot(state, "fir_analysis")
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("snapshot bytes should not be empty")
	}
	if !json.Valid(data) {
		t.Error("snapshot should be valid JSON")
	}
}

func TestMarshalSnapshot_NilState(t *testing.T) {
	_, err := MarshalSnapshot(nil, "fir_analysis")
	if err == nil {
		t.Fatal("expected error for nil state")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestMarshalSnapshot_EmptyGraphName(t *testing.T) {
	_, err := MarshalSnapshot(NewState("wf-session"), "")
	if err == nil {
		t.Fatal("expected error for empty graph name")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestMarshalSnapshot_InvalidGraphName(t *testing.T) {
	state := NewState("wf-session")

	testCases := []struct {
		name      string
		graphName string
	}{
		{"spaces", "my graph"},
		{"special chars", "my@graph!"},
		{"dots", "my.graph"},
		{"slashes", "my/graph"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MarshalSnapshot(state, tc.graphName)
			if err == nil {
				t.Fatalf("expected error for invalid graph name %q", tc.graphName)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got: %v", err)
			}
		})
	}
}

func TestMarshalSnapshot_ValidGraphNames(t *testing.T) {
	state := NewState("wf-session")

	validNames := []string{
		"simple",
		"with-dashes",
		"with_underscores",
		"CamelCase",
		"mixedCase123",
		"UPPERCASE",
		"a1b2c3",
	}

	for _, name := range validNames {
		t.Run(name, func(t *testing.T) {
			if _, err := MarshalSnapshot(state, name); err != nil {
				t.Errorf("unexpected error for valid graph name %q: %v", name, err)
			}
		})
	}
}

func TestUnmarshalSnapshot_Basic(t *testing.T) {
	state := NewState("wf-session")
	state.SetCompleted("facts", "output-facts")
	state.SetCompleted("timeline", float64(42)) // JSON numbers are float64

	data, err := MarshalSnapshot(state, "fir_analysis")
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}

	loaded, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}

	if loaded.State.RunID != "wf-session" {
		t.Errorf("RunID = %q, want %q", loaded.State.RunID, "wf-session")
	}
	if loaded.GraphName != "fir_analysis" {
		t.Errorf("GraphName = %q, want %q", loaded.GraphName, "fir_analysis")
	}
	if loaded.Version != SnapshotVersion {
		t.Errorf("Version = %q, want %q", loaded.Version, SnapshotVersion)
	}

	if !loaded.State.IsCompleted("facts") {
		t.Error("facts should be completed")
	}
	if !loaded.State.IsCompleted("timeline") {
		t.Error("timeline should be completed")
	}

	outputFacts, _ := loaded.State.GetOutput("facts")
	if outputFacts != "output-facts" {
		t.Errorf("facts output = %v, want %v", outputFacts, "output-facts")
	}

	outputTimeline, _ := loaded.State.GetOutput("timeline")
	if outputTimeline != float64(42) {
		t.Errorf("timeline output = %v, want %v", outputTimeline, 42)
	}
}

func TestUnmarshalSnapshot_Roundtrip(t *testing.T) {
	state := NewState("roundtrip-session")
	state.SetCompleted("string-node", "hello")
	state.SetCompleted("number-node", float64(123.45))
	state.SetCompleted("bool-node", true)
	state.SetCompleted("list-node", []any{"a", "b", "c"})
	state.SetCompleted("map-node", map[string]any{"key": "value"})
	state.SetStatus("pending-node", NodeStatusPending)

	data, err := MarshalSnapshot(state, "roundtrip-graph")
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}

	loaded, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}

	if loaded.State.RunID != "roundtrip-session" {
		t.Errorf("RunID = %q, want %q", loaded.State.RunID, "roundtrip-session")
	}

	expectedCompleted := []string{"string-node", "number-node", "bool-node", "list-node", "map-node"}
	for _, name := range expectedCompleted {
		if !loaded.State.IsCompleted(name) {
			t.Errorf("node %q should be completed", name)
		}
	}

	if loaded.State.GetStatus("pending-node") != NodeStatusPending {
		t.Errorf("pending-node status = %v, want %v", loaded.State.GetStatus("pending-node"), NodeStatusPending)
	}
}

func TestUnmarshalSnapshot_Empty(t *testing.T) {
	_, err := UnmarshalSnapshot(nil)
	if err == nil {
		t.Fatal("expected error for empty data")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestUnmarshalSnapshot_InvalidJSON(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte("not valid json"))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestUnmarshalSnapshot_CorruptChecksum(t *testing.T) {
	state := NewState("wf-session")
	state.SetCompleted("facts", "output-facts")

	data, err := MarshalSnapshot(state, "fir_analysis")
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}

	// Tamper with the state content while keeping the stored checksum
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal for tampering: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal(raw["state"], &st); err != nil {
		t.Fatalf("unmarshal state for tampering: %v", err)
	}
	st["run_id"] = "tampered"
	tamperedState, _ := json.Marshal(st)
	raw["state"] = tamperedState
	tampered, _ := json.Marshal(raw)

	_, err = UnmarshalSnapshot(tampered)
	if err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
	if !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("expected ErrSnapshotCorrupt, got: %v", err)
	}
}

func TestUnmarshalSnapshot_VersionMismatch(t *testing.T) {
	modified := []byte(`{"state":{"run_id":"wf-session","started_at":0,"completed_nodes":{},"node_outputs":{},"node_statuses":{},"current_nodes":[]},"timestamp":"2025-01-01T00:00:00Z","version":"0.0","checksum":"invalid","graph_name":"fir_analysis"}`)

	_, err := UnmarshalSnapshot(modified)
	if err == nil {
		t.Fatal("expected error for version mismatch")
	}
	if !errors.Is(err, ErrSnapshotVersionMismatch) {
		t.Errorf("expected ErrSnapshotVersionMismatch, got: %v", err)
	}
}

func TestMarshalSnapshot_Concurrent(t *testing.T) {
	state := NewState("concurrent-session")

	var wg sync.WaitGroup
	errCh := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			nodeName := "node-" + string(rune('a'+idx))
			state.SetCompleted(nodeName, idx)

			if _, err := MarshalSnapshot(state, "concurrent-graph"); err != nil {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent marshal error: %v", err)
	}
}

func TestSnapshotState_DeepCopy(t *testing.T) {
	state := NewState("test")
	state.SetCompleted("a", "original")

	ss := state.toSnapshotState()

	state.SetCompleted("b", true)
	state.NodeOutputs["a"] = "modified"

	if ss.CompletedNodes["b"] {
		t.Error("snapshot state should not have b")
	}
	if ss.NodeOutputs["a"] != "original" {
		t.Error("snapshot state output should be original")
	}
}

func TestSnapshotState_DeepCopy_NestedStructures(t *testing.T) {
	state := NewState("test")

	originalSlice := []any{"a", "b", "c"}
	originalMap := map[string]any{"key1": "value1", "key2": float64(42)}

	state.SetCompleted("slice-node", originalSlice)
	state.SetCompleted("map-node", originalMap)

	ss := state.toSnapshotState()

	// If the copy were shallow these writes would leak into the snapshot
	originalSlice[0] = "MODIFIED"
	originalMap["key1"] = "MODIFIED"

	ssSlice, ok := ss.NodeOutputs["slice-node"].([]any)
	if !ok {
		t.Fatal("slice-node should be []any")
	}
	if ssSlice[0] == "MODIFIED" {
		t.Error("deep copy failed: slice modification affected snapshot")
	}

	ssMap, ok := ss.NodeOutputs["map-node"].(map[string]any)
	if !ok {
		t.Fatal("map-node should be map[string]any")
	}
	if ssMap["key1"] == "MODIFIED" {
		t.Error("deep copy failed: map modification affected snapshot")
	}
}

func TestState_Redacted(t *testing.T) {
	state := NewState("wf-session")
	state.SetCompleted("read_pdf", "raw FIR text")
	state.SetCompleted("translate", "raw FIR text (en)")
	state.SetCompleted("facts", map[string]any{"fir_number": "35/2025"})

	redacted := state.Redacted("read_pdf", "translate")

	if _, ok := redacted.GetOutput("read_pdf"); ok {
		t.Error("read_pdf output should be removed")
	}
	if _, ok := redacted.GetOutput("translate"); ok {
		t.Error("translate output should be removed")
	}
	if _, ok := redacted.GetOutput("facts"); !ok {
		t.Error("facts output should survive redaction")
	}

	// The nodes stay completed so dependents are not re-run
	if !redacted.IsCompleted("read_pdf") {
		t.Error("read_pdf should stay completed")
	}

	// The original is untouched
	if _, ok := state.GetOutput("read_pdf"); !ok {
		t.Error("original state should keep read_pdf output")
	}
}
