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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilContext indicates a nil context was passed to a blocking call.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilNode indicates a nil node was added to a builder.
	ErrNilNode = errors.New("node must not be nil")

	// ErrDuplicateNode indicates two nodes were registered under the same name.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrNodeNotFound indicates a declared dependency has no matching node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrReservedName indicates a node tried to claim the root input key.
	ErrReservedName = errors.New("node name is reserved")

	// ErrNoProgress indicates no node is runnable although the graph is
	// incomplete. This can only happen if the graph was mutated after Build,
	// which the API does not allow; it is kept as a guard against deadlock.
	ErrNoProgress = errors.New("no runnable nodes but graph is incomplete")

	// ErrNodeTimeout indicates a node exceeded its execution deadline.
	ErrNodeTimeout = errors.New("node timed out")

	// ErrAlreadyRun indicates a second run was attempted on an executor.
	// Executors are bound to a single run; create a new one per workflow.
	ErrAlreadyRun = errors.New("executor has already run")

	// ErrSnapshotCorrupt indicates a snapshot failed checksum verification.
	ErrSnapshotCorrupt = errors.New("snapshot checksum mismatch")

	// ErrSnapshotVersionMismatch indicates a snapshot written by an
	// incompatible format version.
	ErrSnapshotVersionMismatch = errors.New("snapshot version mismatch")
)

// NodeError wraps a failure with the name of the node that produced it.
type NodeError struct {
	Node string
	Err  error
}

// NewNodeError creates a NodeError for the named node.
func NewNodeError(node string, err error) *NodeError {
	return &NodeError{Node: node, Err: err}
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// CycleError reports a dependency cycle found during Build. Path holds the
// node names along the cycle, ending on the node that closes it.
type CycleError struct {
	Path []string
}

// NewCycleError creates a CycleError for the given cycle path.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}
