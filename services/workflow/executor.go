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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"
)

var (
	tracer = otel.Tracer("fir.workflow")
	meter  = otel.Meter("fir.workflow")
)

// DefaultMaxParallel bounds how many nodes of one wave run concurrently.
// The widest wave in the analysis graph is the four statute mappings.
const DefaultMaxParallel = 4

// EventType identifies a progress event emitted during execution.
type EventType string

const (
	EventNodeStarted       EventType = "node_started"
	EventNodeCompleted     EventType = "node_completed"
	EventNodeFailed        EventType = "node_failed"
	EventWorkflowCompleted EventType = "workflow_completed"
)

// Event is a progress notification delivered to the executor's observer.
// Node is empty for workflow-level events; Error is set for node_failed and
// for a workflow_completed that ends a failed run.
type Event struct {
	Type     EventType     `json:"type"`
	RunID    string        `json:"run_id"`
	Node     string        `json:"node,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Result summarizes one workflow run.
type Result struct {
	RunID         string
	Success       bool
	Output        any
	Error         string
	FailedNode    string
	Duration      time.Duration
	NodesExecuted int
	NodeDurations map[string]time.Duration
}

// Executor runs a Graph with bounded parallelism and observability.
//
// Description:
//
//	Executor repeatedly finds nodes whose dependencies are satisfied and
//	runs them concurrently, recording outputs into a State. The first node
//	failure stops the run after the in-flight wave drains. An executor is
//	bound to a single run; create a new one per workflow.
type Executor struct {
	graph       *Graph
	logger      *slog.Logger
	observer    func(Event)
	maxParallel int
	started     atomic.Bool

	// Metrics (initialized lazily)
	metricsOnce   sync.Once
	nodeLatency   metric.Float64Histogram
	nodeSuccesses metric.Int64Counter
	nodeFailures  metric.Int64Counter
	activeNodes   metric.Int64UpDownCounter
	runLatency    metric.Float64Histogram
}

// NewExecutor creates a new graph executor.
//
// Inputs:
//
//	graph - The graph to execute. Must not be nil.
//	logger - Logger for execution logs. If nil, uses slog.Default().
//
// Outputs:
//
//	*Executor - The configured executor.
//	error - Non-nil if initialization fails.
func NewExecutor(graph *Graph, logger *slog.Logger) (*Executor, error) {
	if graph == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		graph:       graph,
		logger:      logger,
		maxParallel: DefaultMaxParallel,
	}, nil
}

// WithObserver registers a callback for progress events. The callback runs
// on executor goroutines and must not block; hand events off to a buffered
// channel if they feed a WebSocket.
func (e *Executor) WithObserver(fn func(Event)) *Executor {
	e.observer = fn
	return e
}

// WithMaxParallel sets the per-wave concurrency bound. Values below 1 are
// ignored.
func (e *Executor) WithMaxParallel(n int) *Executor {
	if n >= 1 {
		e.maxParallel = n
	}
	return e
}

func (e *Executor) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution (graceful degradation).
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.nodeLatency, err = meter.Float64Histogram("workflow_node_duration_seconds",
			metric.WithDescription("Time spent executing each analysis node"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_latency: "+err.Error())
		}

		e.nodeSuccesses, err = meter.Int64Counter("workflow_node_success_total",
			metric.WithDescription("Number of successful node executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_successes: "+err.Error())
		}

		e.nodeFailures, err = meter.Int64Counter("workflow_node_failure_total",
			metric.WithDescription("Number of failed node executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_failures: "+err.Error())
		}

		e.activeNodes, err = meter.Int64UpDownCounter("workflow_active_nodes",
			metric.WithDescription("Number of currently executing nodes"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_nodes: "+err.Error())
		}

		e.runLatency, err = meter.Float64Histogram("workflow_duration_seconds",
			metric.WithDescription("Total workflow execution time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some workflow metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run executes the graph from scratch with a generated run ID.
//
// Description:
//
//	Convenience wrapper around RunFromState for fresh runs. The orchestrator
//	prefers RunFromState with a State keyed by the workflow ID so that logs
//	and spans correlate with the HTTP surface.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	input - Workflow input delivered to root nodes under RootInputKey.
//
// Outputs:
//
//	*Result - Execution result including output and timing.
//	error - Non-nil on failure.
func (e *Executor) Run(ctx context.Context, input any) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	state := NewState(uuid.NewString()[:12])
	state.SetInput(input)
	return e.RunFromState(ctx, state)
}

// RunFromState executes the graph's remaining nodes given a prepared state.
//
// Description:
//
//	Nodes already marked completed in the state are not re-executed; their
//	stored outputs feed dependents directly. This is the entry point for
//	extending a finished analysis with additional sections: the new graph
//	includes the satisfied nodes, and the state seeds their outputs.
//	Any recorded failure is cleared first so the failed node is retried.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	state - Prepared state. Must not be nil. The workflow input must
//	        already be set (see State.SetInput).
//
// Outputs:
//
//	*Result - Execution result including output and timing.
//	error - Non-nil on failure.
func (e *Executor) RunFromState(ctx context.Context, state *State) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state must not be nil", ErrInvalidInput)
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "workflow.Run",
		trace.WithAttributes(
			attribute.String("workflow.graph", e.graph.Name()),
			attribute.String("workflow.run_id", state.RunID),
			attribute.Int("workflow.node_count", e.graph.NodeCount()),
			attribute.Int("workflow.seeded_nodes", state.CompletedCount()),
		),
	)
	defer span.End()

	start := time.Now()
	state.clearFailure()

	e.logger.Info("workflow started",
		slog.String("graph", e.graph.Name()),
		slog.String("run_id", state.RunID),
		slog.Int("nodes", e.graph.NodeCount()),
		slog.Int("seeded", state.CompletedCount()),
	)

	nodeDurations := make(map[string]time.Duration)

	// Execute until all nodes complete or failure
	for !state.IsComplete(e.graph) && !state.IsFailed() {
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context canceled")
			result := e.buildResult(state, start, nodeDurations, ctx.Err())
			e.emit(Event{Type: EventWorkflowCompleted, RunID: state.RunID, Error: result.Error, Duration: result.Duration})
			return result, ctx.Err()
		default:
		}

		// Find nodes ready to execute (all deps satisfied)
		ready := e.findReadyNodes(state)
		if len(ready) == 0 {
			if state.IsFailed() {
				break
			}
			err := ErrNoProgress
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			result := e.buildResult(state, start, nodeDurations, err)
			e.emit(Event{Type: EventWorkflowCompleted, RunID: state.RunID, Error: result.Error, Duration: result.Duration})
			return result, err
		}

		// Execute ready nodes in parallel
		if err := e.executeParallel(ctx, ready, state, nodeDurations); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			result := e.buildResult(state, start, nodeDurations, err)
			e.emit(Event{Type: EventWorkflowCompleted, RunID: state.RunID, Error: result.Error, Duration: result.Duration})
			return result, err
		}
	}

	duration := time.Since(start)
	if e.runLatency != nil {
		e.runLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("graph", e.graph.Name())),
		)
	}

	result := e.buildResult(state, start, nodeDurations, nil)

	if result.Success {
		span.SetStatus(codes.Ok, "")
		e.logger.Info("workflow completed",
			slog.String("run_id", state.RunID),
			slog.Duration("duration", duration),
			slog.Int("nodes_executed", result.NodesExecuted),
		)
	} else {
		span.SetStatus(codes.Error, result.Error)
		e.logger.Error("workflow failed",
			slog.String("run_id", state.RunID),
			slog.String("failed_node", result.FailedNode),
			slog.String("error", result.Error),
		)
	}

	e.emit(Event{Type: EventWorkflowCompleted, RunID: state.RunID, Error: result.Error, Duration: result.Duration})
	return result, nil
}

// findReadyNodes returns nodes that are ready to execute.
// A node is ready if all its dependencies have completed.
func (e *Executor) findReadyNodes(state *State) []Node {
	ready := make([]Node, 0)

	for _, name := range e.graph.NodeNames() {
		// Skip already completed
		if state.IsCompleted(name) {
			continue
		}

		// Skip already running
		if state.GetStatus(name) == NodeStatusRunning {
			continue
		}

		// Check all dependencies completed
		deps := e.graph.GetDependencies(name)
		allDepsComplete := true
		for _, dep := range deps {
			if !state.IsCompleted(dep) {
				allDepsComplete = false
				break
			}
		}

		if allDepsComplete {
			node, _ := e.graph.GetNode(name)
			ready = append(ready, node)
		}
	}

	return ready
}

// executeParallel runs one wave of nodes concurrently, at most maxParallel
// at a time. It returns the first node error after the whole wave drains.
func (e *Executor) executeParallel(
	ctx context.Context,
	nodes []Node,
	state *State,
	nodeDurations map[string]time.Duration,
) error {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	state.SetCurrentNodes(names)
	defer state.SetCurrentNodes(nil)

	var mu sync.Mutex // guards nodeDurations

	g := new(errgroup.Group)
	g.SetLimit(e.maxParallel)

	for _, node := range nodes {
		g.Go(func() error {
			state.SetStatus(node.Name(), NodeStatusRunning)
			nodeStart := time.Now()

			err := e.executeNode(ctx, node, state)

			mu.Lock()
			nodeDurations[node.Name()] = time.Since(nodeStart)
			mu.Unlock()

			return err
		})
	}

	return g.Wait()
}

// executeNode runs a single node with observability.
func (e *Executor) executeNode(ctx context.Context, node Node, state *State) error {
	// Create child span
	ctx, span := tracer.Start(ctx, node.Name(),
		trace.WithAttributes(
			attribute.String("workflow.node", node.Name()),
			attribute.StringSlice("workflow.dependencies", node.Dependencies()),
			attribute.String("workflow.run_id", state.RunID),
			attribute.Bool("workflow.retryable", node.Retryable()),
		),
	)
	defer span.End()

	// Track active nodes
	if e.activeNodes != nil {
		e.activeNodes.Add(ctx, 1)
		defer e.activeNodes.Add(ctx, -1)
	}

	e.logger.Debug("node starting",
		slog.String("node", node.Name()),
		slog.String("run_id", state.RunID),
	)
	e.emit(Event{Type: EventNodeStarted, RunID: state.RunID, Node: node.Name()})

	// Gather inputs from dependencies
	inputs := make(map[string]any)
	for _, dep := range node.Dependencies() {
		output, ok := state.GetOutput(dep)
		if !ok {
			// Redacted or missing dependency output falls back to the
			// workflow input
			output, _ = state.GetOutput(RootInputKey)
		}
		inputs[dep] = output
	}

	// Nodes with no deps receive the workflow input
	if len(node.Dependencies()) == 0 {
		rootOutput, _ := state.GetOutput(RootInputKey)
		inputs[RootInputKey] = rootOutput
	}

	// Execute with timeout
	start := time.Now()
	timeout := node.Timeout()
	if timeout == 0 {
		timeout = DefaultNodeTimeout
	}

	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := node.Execute(nodeCtx, inputs)
	duration := time.Since(start)

	// Record latency metric
	if e.nodeLatency != nil {
		e.nodeLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("node", node.Name())),
		)
	}

	if err != nil {
		// Check if it was a timeout
		if nodeCtx.Err() == context.DeadlineExceeded {
			err = ErrNodeTimeout
		}

		if e.nodeFailures != nil {
			e.nodeFailures.Add(ctx, 1,
				metric.WithAttributes(attribute.String("node", node.Name())),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		state.SetFailed(node.Name(), err)

		e.logger.Error("node failed",
			slog.String("node", node.Name()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		e.emit(Event{Type: EventNodeFailed, RunID: state.RunID, Node: node.Name(), Error: err.Error(), Duration: duration})

		return NewNodeError(node.Name(), err)
	}

	if e.nodeSuccesses != nil {
		e.nodeSuccesses.Add(ctx, 1,
			metric.WithAttributes(attribute.String("node", node.Name())),
		)
	}
	span.SetStatus(codes.Ok, "")

	// Store output and mark complete
	state.SetCompleted(node.Name(), output)

	e.logger.Info("node completed",
		slog.String("node", node.Name()),
		slog.Duration("duration", duration),
	)
	e.emit(Event{Type: EventNodeCompleted, RunID: state.RunID, Node: node.Name(), Duration: duration})

	return nil
}

// buildResult constructs the execution result.
func (e *Executor) buildResult(
	state *State,
	start time.Time,
	nodeDurations map[string]time.Duration,
	err error,
) *Result {
	result := &Result{
		RunID:         state.RunID,
		Duration:      time.Since(start),
		NodesExecuted: state.CompletedCount(),
		NodeDurations: nodeDurations,
	}

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.FailedNode = state.FailedNode
	} else if state.IsFailed() {
		result.Success = false
		result.Error = state.Error
		result.FailedNode = state.FailedNode
	} else {
		result.Success = true
		// Terminal node output is the run result
		if e.graph.Terminal() != "" {
			result.Output, _ = state.GetOutput(e.graph.Terminal())
		}
	}

	return result
}
