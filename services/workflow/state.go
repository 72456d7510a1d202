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
	"sync"
	"time"
)

// NodeStatus describes a node's lifecycle within one run.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// State tracks the progress of one workflow run.
//
// Description:
//
//	State accumulates per-node outputs as the executor advances through
//	the graph. Seeding outputs with SetCompleted before RunFromState lets
//	already-satisfied nodes feed their dependents without re-executing,
//	which is how a finished analysis is extended with more sections.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. The exported fields exist for
//	serialization; once execution has started, mutate only through the
//	methods.
type State struct {
	mu sync.RWMutex

	RunID          string
	StartedAt      int64 // Unix milliseconds UTC
	CompletedNodes map[string]bool
	NodeOutputs    map[string]any
	NodeStatuses   map[string]NodeStatus
	CurrentNodes   []string
	FailedNode     string
	Error          string
}

// NewState creates an empty run state.
func NewState(runID string) *State {
	return &State{
		RunID:          runID,
		StartedAt:      time.Now().UnixMilli(),
		CompletedNodes: make(map[string]bool),
		NodeOutputs:    make(map[string]any),
		NodeStatuses:   make(map[string]NodeStatus),
	}
}

// SetInput stores the workflow input under RootInputKey.
func (s *State) SetInput(input any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NodeOutputs[RootInputKey] = input
}

// IsCompleted reports whether the named node has completed.
func (s *State) IsCompleted(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CompletedNodes[name]
}

// GetStatus returns the node's status, NodeStatusPending if unknown.
func (s *State) GetStatus(name string) NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.NodeStatuses[name]; ok {
		return status
	}
	return NodeStatusPending
}

// SetStatus records a node's status.
func (s *State) SetStatus(name string, status NodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NodeStatuses[name] = status
}

// GetOutput returns a node's stored output.
func (s *State) GetOutput(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output, ok := s.NodeOutputs[name]
	return output, ok
}

// SetCompleted stores a node's output and marks it completed. Calling it
// before RunFromState seeds an already-satisfied node.
func (s *State) SetCompleted(name string, output any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompletedNodes[name] = true
	s.NodeOutputs[name] = output
	s.NodeStatuses[name] = NodeStatusCompleted
}

// SetFailed records a node failure. The first failure wins; later failures
// in the same wave still mark their node's status but keep the original
// FailedNode and Error.
func (s *State) SetFailed(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NodeStatuses[name] = NodeStatusFailed
	if s.FailedNode != "" {
		return
	}
	s.FailedNode = name
	s.Error = err.Error()
}

// IsFailed reports whether any node has failed.
func (s *State) IsFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.FailedNode != "" || s.Error != ""
}

// SetCurrentNodes records the names of nodes currently executing.
func (s *State) SetCurrentNodes(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentNodes = names
}

// CurrentlyRunning returns a copy of the currently executing node names.
func (s *State) CurrentlyRunning() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.CurrentNodes))
	copy(names, s.CurrentNodes)
	return names
}

// CompletedCount returns the number of completed nodes.
func (s *State) CompletedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.CompletedNodes)
}

// IsComplete reports whether every node in g has completed. An empty graph
// is complete by definition.
func (s *State) IsComplete(g *Graph) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name := range g.nodes {
		if !s.CompletedNodes[name] {
			return false
		}
	}
	return true
}

// clearFailure resets failure fields so a resumed run can retry the node
// that failed.
func (s *State) clearFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailedNode = ""
	s.Error = ""
}

// Redacted returns a copy of the state with the named node outputs removed.
//
// Description:
//
//	Raw FIR text never leaves locked memory, so the outputs of the text
//	bearing nodes are stripped before a state is snapshotted for storage.
//	The nodes stay marked completed; a resumed run that somehow needs a
//	redacted output falls back to the workflow input.
func (s *State) Redacted(names ...string) *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}

	out := &State{
		RunID:          s.RunID,
		StartedAt:      s.StartedAt,
		CompletedNodes: make(map[string]bool, len(s.CompletedNodes)),
		NodeOutputs:    make(map[string]any, len(s.NodeOutputs)),
		NodeStatuses:   make(map[string]NodeStatus, len(s.NodeStatuses)),
		CurrentNodes:   make([]string, len(s.CurrentNodes)),
		FailedNode:     s.FailedNode,
		Error:          s.Error,
	}
	for k, v := range s.CompletedNodes {
		out.CompletedNodes[k] = v
	}
	for k, v := range s.NodeOutputs {
		if !drop[k] {
			out.NodeOutputs[k] = v
		}
	}
	for k, v := range s.NodeStatuses {
		out.NodeStatuses[k] = v
	}
	copy(out.CurrentNodes, s.CurrentNodes)
	return out
}
