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
	"context"
	"fmt"
	"time"
)

// RootInputKey is the reserved inputs key under which the workflow input
// (the uploaded FIR payload) is delivered to nodes with no dependencies.
// No node may use this key as its name.
const RootInputKey = "fir"

// DefaultNodeTimeout is the default timeout for nodes that don't specify one.
const DefaultNodeTimeout = 30 * time.Second

// Node is a single unit of work in an analysis graph.
//
// Description:
//
//	A Node declares its name and the names of the nodes whose outputs it
//	consumes. The executor delivers those outputs in the inputs map, keyed
//	by node name. Nodes with no dependencies receive the workflow input
//	under RootInputKey instead.
type Node interface {
	// Name returns the node's unique identifier within its graph.
	Name() string

	// Dependencies returns the names of nodes that must complete first.
	Dependencies() []string

	// Execute runs the node's work and returns its output.
	Execute(ctx context.Context, inputs map[string]any) (any, error)

	// Retryable reports whether the node's work is safe to re-execute.
	Retryable() bool

	// Timeout returns the maximum execution time for this node.
	Timeout() time.Duration
}

// BaseNode provides a partial implementation of the Node interface.
//
// Description:
//
//	BaseNode implements the common parts of Node (name, dependencies,
//	timeout, retryable). Embed this in concrete node implementations and
//	override Execute.
//
// Example:
//
//	type FactsNode struct {
//	    workflow.BaseNode
//	    client llm.Client
//	}
//
//	func NewFactsNode(client llm.Client) *FactsNode {
//	    return &FactsNode{
//	        BaseNode: workflow.BaseNode{
//	            NodeName:         "facts",
//	            NodeDependencies: []string{"translate"},
//	            NodeTimeout:      2 * time.Minute,
//	        },
//	        client: client,
//	    }
//	}
//
//	func (n *FactsNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
//	    // implementation
//	}
type BaseNode struct {
	NodeName         string
	NodeDependencies []string
	NodeTimeout      time.Duration
	NodeRetryable    bool
}

// Name returns the node's unique identifier.
func (n *BaseNode) Name() string {
	return n.NodeName
}

// Dependencies returns the names of nodes that must complete first.
func (n *BaseNode) Dependencies() []string {
	if n.NodeDependencies == nil {
		return []string{}
	}
	return n.NodeDependencies
}

// Timeout returns the maximum execution time for this node.
func (n *BaseNode) Timeout() time.Duration {
	if n.NodeTimeout == 0 {
		return DefaultNodeTimeout
	}
	return n.NodeTimeout
}

// Retryable returns whether this node can be retried on failure.
func (n *BaseNode) Retryable() bool {
	return n.NodeRetryable
}

// Execute returns an error if called directly.
// Concrete implementations must override this method.
func (n *BaseNode) Execute(_ context.Context, _ map[string]any) (any, error) {
	return nil, fmt.Errorf("%w: BaseNode.Execute must be overridden by concrete implementation", ErrInvalidInput)
}

// FuncNode wraps a function as a Node for simple cases.
//
// Description:
//
//	FuncNode allows creating nodes from plain functions without defining a
//	full struct. Used for glue nodes and for seeding tests.
//
// Example:
//
//	node := workflow.NewFuncNode("translate", []string{"read_pdf"}, func(ctx context.Context, inputs map[string]any) (any, error) {
//	    return translated, nil
//	})
type FuncNode struct {
	BaseNode
	fn func(context.Context, map[string]any) (any, error)
}

// NewFuncNode creates a node from a function.
//
// Inputs:
//
//	name - The node name.
//	deps - Dependency node names.
//	fn - The function to execute.
//
// Outputs:
//
//	*FuncNode - The function node.
func NewFuncNode(
	name string,
	deps []string,
	fn func(context.Context, map[string]any) (any, error),
) *FuncNode {
	return &FuncNode{
		BaseNode: BaseNode{
			NodeName:         name,
			NodeDependencies: deps,
		},
		fn: fn,
	}
}

// Execute runs the wrapped function.
func (n *FuncNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	if n.fn == nil {
		return nil, ErrInvalidInput
	}
	return n.fn(ctx, inputs)
}

// WithTimeout sets the timeout for a FuncNode.
func (n *FuncNode) WithTimeout(d time.Duration) *FuncNode {
	n.NodeTimeout = d
	return n
}

// WithRetryable sets whether the FuncNode is retryable.
func (n *FuncNode) WithRetryable(retryable bool) *FuncNode {
	n.NodeRetryable = retryable
	return n
}
