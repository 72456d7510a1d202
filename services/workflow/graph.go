// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package workflow executes directed acyclic graphs of analysis nodes.
//
// Description:
//
//	The FIR analysis pipeline is a graph of LLM-backed nodes with explicit
//	dependencies: text extraction feeds translation, translation feeds fact
//	extraction, the four statute mappings fan out from the facts, and the
//	report sections converge behind them. This package provides the generic
//	engine: Builder validates a graph at construction time, Executor runs
//	it wave by wave with bounded parallelism, and State records per-node
//	outputs so a finished analysis can later be extended with additional
//	sections without re-running satisfied nodes.
package workflow

import (
	"fmt"
	"regexp"
	"sort"
)

// validGraphNamePattern defines valid characters for graph and node names.
var validGraphNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Edge is a directed dependency between two nodes: To depends on From.
type Edge struct {
	From string
	To   string
}

// Graph is a validated, immutable execution graph.
//
// Description:
//
//	Graph is produced by Builder.Build and never mutated afterwards, so its
//	accessors are safe for concurrent use.
type Graph struct {
	name     string
	nodes    map[string]Node
	edges    []Edge
	adjList  map[string][]string
	terminal string
}

// Name returns the graph's name, used in logging and metrics.
func (g *Graph) Name() string {
	return g.name
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// NodeNames returns all node names in sorted order.
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetNode returns the named node.
func (g *Graph) GetNode(name string) (Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// HasNode reports whether the graph contains the named node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// GetDependencies returns the dependency names for a node.
func (g *Graph) GetDependencies(name string) []string {
	return g.adjList[name]
}

// Terminal returns the name of the terminal node, whose output becomes the
// run result. Empty for an empty graph.
func (g *Graph) Terminal() string {
	return g.terminal
}

// Builder constructs a Graph with validation.
//
// Description:
//
//	Builder provides a fluent API for constructing graphs. It validates
//	that all dependencies exist and that no cycles are present. An empty
//	graph is valid and completes immediately when run; this is how a
//	section-extension request whose sections are all already satisfied
//	resolves.
//
// Thread Safety:
//
//	Builder is NOT safe for concurrent use. Build the graph in a single
//	goroutine.
//
// Example:
//
//	graph, err := workflow.NewBuilder("fir_analysis").
//	    AddNode(readNode).
//	    AddNode(translateNode).
//	    Build()
type Builder struct {
	name   string
	nodes  map[string]Node
	edges  []Edge
	errors []error
}

// NewBuilder creates a new graph builder.
//
// Inputs:
//
//	name - The name for the graph (used in logging/metrics).
//
// Outputs:
//
//	*Builder - The builder instance.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		nodes:  make(map[string]Node),
		edges:  make([]Edge, 0),
		errors: make([]error, 0),
	}
}

// AddNode adds a node to the graph.
//
// Description:
//
//	Adds a node and automatically creates edges from its declared
//	dependencies. A nil node, a duplicate name, a name claiming the
//	reserved root input key, or a name outside [a-zA-Z0-9_-]+ records an
//	error that Build will surface.
//
// Inputs:
//
//	node - The node to add. Must not be nil.
//
// Outputs:
//
//	*Builder - The builder for chaining.
func (b *Builder) AddNode(node Node) *Builder {
	if node == nil {
		b.errors = append(b.errors, ErrNilNode)
		return b
	}

	name := node.Name()
	if name == RootInputKey {
		b.errors = append(b.errors, fmt.Errorf("%w: %q", ErrReservedName, name))
		return b
	}
	if !validGraphNamePattern.MatchString(name) {
		b.errors = append(b.errors, fmt.Errorf("%w: node name must match [a-zA-Z0-9_-]+, got %q", ErrInvalidInput, name))
		return b
	}
	if _, exists := b.nodes[name]; exists {
		b.errors = append(b.errors, NewNodeError(name, ErrDuplicateNode))
		return b
	}

	b.nodes[name] = node

	// Create edges from dependencies
	for _, dep := range node.Dependencies() {
		b.edges = append(b.edges, Edge{From: dep, To: name})
	}

	return b
}

// Build validates and constructs the Graph.
//
// Description:
//
//	Validates that the graph name is well formed, all dependencies exist,
//	and no cycles are present. Returns an error if validation fails.
//
// Outputs:
//
//	*Graph - The constructed graph.
//	error - Non-nil if validation fails.
func (b *Builder) Build() (*Graph, error) {
	// Surface the first accumulated error
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	if !validGraphNamePattern.MatchString(b.name) {
		return nil, fmt.Errorf("%w: graph name must match [a-zA-Z0-9_-]+, got %q", ErrInvalidInput, b.name)
	}

	// Validate dependencies exist
	for _, edge := range b.edges {
		if _, exists := b.nodes[edge.From]; !exists {
			return nil, NewNodeError(edge.To, fmt.Errorf("%w: dependency %q", ErrNodeNotFound, edge.From))
		}
	}

	// Build adjacency list
	adjList := make(map[string][]string)
	for name := range b.nodes {
		adjList[name] = b.nodes[name].Dependencies()
	}

	// Check for cycles using DFS
	if err := b.detectCycles(adjList); err != nil {
		return nil, err
	}

	// Find terminal node (no outgoing edges)
	terminal := b.findTerminal()

	return &Graph{
		name:     b.name,
		nodes:    b.nodes,
		edges:    b.edges,
		adjList:  adjList,
		terminal: terminal,
	}, nil
}

// detectCycles uses DFS to detect cycles in the graph.
// Nodes are visited in sorted order so the reported cycle is deterministic.
func (b *Builder) detectCycles(adjList map[string][]string) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var dfs func(node string) error
	dfs = func(node string) error {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, dep := range adjList[node] {
			if !visited[dep] {
				if err := dfs(dep); err != nil {
					return err
				}
			} else if recStack[dep] {
				// Found cycle - find where it starts
				cycleStart := -1
				for i, n := range path {
					if n == dep {
						cycleStart = i
						break
					}
				}
				cyclePath := append(path[cycleStart:], dep)
				return NewCycleError(cyclePath)
			}
		}

		path = path[:len(path)-1]
		recStack[node] = false
		return nil
	}

	names := make([]string, 0, len(b.nodes))
	for name := range b.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// findTerminal finds the node with no dependents (terminal node).
// If multiple terminals exist, returns the lexicographically first one for
// determinism.
func (b *Builder) findTerminal() string {
	// A node with an outgoing edge is some other node's dependency.
	// The terminal is a node no one depends on.
	hasDependent := make(map[string]bool)
	for _, edge := range b.edges {
		hasDependent[edge.From] = true
	}

	var terminals []string
	for name := range b.nodes {
		if !hasDependent[name] {
			terminals = append(terminals, name)
		}
	}

	if len(terminals) == 0 {
		return ""
	}

	sort.Strings(terminals)
	return terminals[0]
}
