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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is the current snapshot format version (semver).
const SnapshotVersion = "1.0.0"

// snapshotState is a JSON-serializable copy of State for checksumming.
// This avoids issues with sync.RWMutex not being serializable.
type snapshotState struct {
	RunID          string                `json:"run_id"`
	StartedAt      int64                 `json:"started_at"` // Unix milliseconds UTC
	CompletedNodes map[string]bool       `json:"completed_nodes"`
	NodeOutputs    map[string]any        `json:"node_outputs"`
	NodeStatuses   map[string]NodeStatus `json:"node_statuses"`
	CurrentNodes   []string              `json:"current_nodes"`
	FailedNode     string                `json:"failed_node,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// toSnapshotState converts State to a serializable form.
// Uses a JSON roundtrip for NodeOutputs to ensure deep copy of nested
// structures.
func (s *State) toSnapshotState() *snapshotState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completedNodes := make(map[string]bool, len(s.CompletedNodes))
	for k, v := range s.CompletedNodes {
		completedNodes[k] = v
	}

	// Deep copy NodeOutputs using JSON roundtrip to handle nested slices/maps
	nodeOutputs := make(map[string]any, len(s.NodeOutputs))
	if len(s.NodeOutputs) > 0 {
		data, err := json.Marshal(s.NodeOutputs)
		if err == nil {
			// Ignore unmarshal error - fall back to shallow copy if it fails
			_ = json.Unmarshal(data, &nodeOutputs)
		} else {
			// Fallback to shallow copy (shouldn't happen with valid JSON types)
			for k, v := range s.NodeOutputs {
				nodeOutputs[k] = v
			}
		}
	}

	nodeStatuses := make(map[string]NodeStatus, len(s.NodeStatuses))
	for k, v := range s.NodeStatuses {
		nodeStatuses[k] = v
	}

	currentNodes := make([]string, len(s.CurrentNodes))
	copy(currentNodes, s.CurrentNodes)

	return &snapshotState{
		RunID:          s.RunID,
		StartedAt:      s.StartedAt,
		CompletedNodes: completedNodes,
		NodeOutputs:    nodeOutputs,
		NodeStatuses:   nodeStatuses,
		CurrentNodes:   currentNodes,
		FailedNode:     s.FailedNode,
		Error:          s.Error,
	}
}

// toState converts snapshotState back to State.
func (ss *snapshotState) toState() *State {
	return &State{
		RunID:          ss.RunID,
		StartedAt:      ss.StartedAt,
		CompletedNodes: ss.CompletedNodes,
		NodeOutputs:    ss.NodeOutputs,
		NodeStatuses:   ss.NodeStatuses,
		CurrentNodes:   ss.CurrentNodes,
		FailedNode:     ss.FailedNode,
		Error:          ss.Error,
	}
}

// Snapshot is a verified capture of a run's state.
//
// Description:
//
//	The orchestrator seals each completed analysis with a snapshot and
//	checks the seal before a later request may build on the stored
//	results. Values restored from a snapshot are plain JSON shapes
//	(map[string]any, []any, float64), not the node output types the run
//	produced; callers treat the state as evidence, not as executable
//	input.
type Snapshot struct {
	State     *State
	Timestamp int64 // Unix milliseconds UTC
	Version   string
	Checksum  string
	GraphName string
}

// serializableSnapshot is the wire format for snapshots.
type serializableSnapshot struct {
	State     *snapshotState `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Checksum  string         `json:"checksum"`
	GraphName string         `json:"graph_name"`
}

// computeChecksum calculates SHA256 of the state for integrity verification.
func computeChecksum(state *snapshotState, graphName string, timestamp time.Time) (string, error) {
	// Deterministic representation excluding the checksum field itself
	data := struct {
		State     *snapshotState `json:"state"`
		Timestamp time.Time      `json:"timestamp"`
		Version   string         `json:"version"`
		GraphName string         `json:"graph_name"`
	}{
		State:     state,
		Timestamp: timestamp,
		Version:   SnapshotVersion,
		GraphName: graphName,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal for checksum: %w", err)
	}

	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// MarshalSnapshot serializes a run state for storage.
//
// Description:
//
//	Produces a self-verifying JSON document the results store can persist
//	as an opaque value (in-memory map or Badger). Callers that must not
//	persist raw FIR text redact the state first (see State.Redacted).
//
// Inputs:
//
//	state - The run state to capture. Must not be nil.
//	graphName - Name of the graph the state belongs to.
//
// Outputs:
//
//	[]byte - The serialized snapshot.
//	error - Non-nil if validation or serialization fails.
//
// Thread Safety:
//
//	Safe to call concurrently with graph execution.
func MarshalSnapshot(state *State, graphName string) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: state must not be nil", ErrInvalidInput)
	}
	if graphName == "" {
		return nil, fmt.Errorf("%w: graphName must not be empty", ErrInvalidInput)
	}
	if !validGraphNamePattern.MatchString(graphName) {
		return nil, fmt.Errorf("%w: graphName must match pattern [a-zA-Z0-9_-]+, got %q", ErrInvalidInput, graphName)
	}

	ss := state.toSnapshotState()
	timestamp := time.Now()

	checksum, err := computeChecksum(ss, graphName, timestamp)
	if err != nil {
		return nil, fmt.Errorf("compute checksum: %w", err)
	}

	snapshot := &serializableSnapshot{
		State:     ss,
		Timestamp: timestamp,
		Version:   SnapshotVersion,
		Checksum:  checksum,
		GraphName: graphName,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	return data, nil
}

// UnmarshalSnapshot parses and verifies a snapshot produced by
// MarshalSnapshot.
//
// Description:
//
//	Verifies the format version and the integrity checksum before handing
//	the state back. A tampered or truncated value from the store surfaces
//	as ErrSnapshotCorrupt rather than as silently wrong analysis results.
//
// Inputs:
//
//	data - Serialized snapshot bytes.
//
// Outputs:
//
//	*Snapshot - The verified snapshot. Never nil on success.
//	error - Non-nil if parsing or verification fails.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: data must not be empty", ErrInvalidInput)
	}

	var ss serializableSnapshot
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	if ss.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrSnapshotVersionMismatch, ss.Version, SnapshotVersion)
	}
	if ss.State == nil {
		return nil, fmt.Errorf("%w: snapshot has no state", ErrInvalidInput)
	}

	expectedChecksum, err := computeChecksum(ss.State, ss.GraphName, ss.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("compute checksum for verification: %w", err)
	}

	if ss.Checksum != expectedChecksum {
		return nil, ErrSnapshotCorrupt
	}

	return &Snapshot{
		State:     ss.State.toState(),
		Timestamp: ss.Timestamp.UnixMilli(),
		Version:   ss.Version,
		Checksum:  ss.Checksum,
		GraphName: ss.GraphName,
	}, nil
}
