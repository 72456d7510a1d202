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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/observability"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/policy_engine"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// DefaultRunTimeout bounds one analysis run end to end. A full run makes
// roughly fifteen LLM calls; generous so slow local backends finish.
const DefaultRunTimeout = 20 * time.Minute

// Runner executes analysis workflows in the background and persists
// their outcome. The HTTP handlers hand it a request and return
// immediately; clients follow progress over the WebSocket or by polling
// the results API.
type Runner struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	hub      *Hub
	metrics  *observability.AnalysisMetrics
	policy   *policy_engine.PolicyEngine
	logger   *slog.Logger
	timeout  time.Duration
	ext      extensions.ServiceOptions

	wg sync.WaitGroup
}

// NewRunner creates a runner. metrics and policy may be nil.
func NewRunner(st store.Store, p *pipeline.Pipeline, hub *Hub, metrics *observability.AnalysisMetrics, policy *policy_engine.PolicyEngine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    st,
		pipeline: p,
		hub:      hub,
		metrics:  metrics,
		policy:   policy,
		logger:   logger,
		timeout:  DefaultRunTimeout,
		ext:      extensions.DefaultOptions(),
	}
}

// WithTimeout overrides the per-run deadline. Values <= 0 are ignored.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithExtensions installs the deployment seams the runner reports into:
// the audit trail, the chain-of-custody auditor, and the classifier run
// over the document text.
func (r *Runner) WithExtensions(opts extensions.ServiceOptions) *Runner {
	r.ext = opts.Normalize()
	return r
}

// Start launches the workflow asynchronously. The record for
// req.RunID must already exist in the store with status running.
func (r *Runner) Start(req pipeline.Request) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(req)
	}()
}

// Wait blocks until every started workflow has finished. Used during
// shutdown and by tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(req pipeline.Request) {
	// Detached from the upload request's context: the workflow outlives
	// the HTTP exchange that started it.
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	log := r.logger.With(slog.String("workflow_id", req.RunID))
	start := time.Now()

	graph, state, err := r.pipeline.Assemble(req)
	if err != nil {
		log.Error("workflow assembly failed", slog.Any("error", err))
		r.finish(ctx, req, nil, nil, err.Error(), start)
		return
	}

	exec, err := workflow.NewExecutor(graph, log)
	if err != nil {
		log.Error("executor construction failed", slog.Any("error", err))
		r.finish(ctx, req, nil, nil, err.Error(), start)
		return
	}
	exec.WithObserver(func(ev workflow.Event) {
		switch ev.Type {
		case workflow.EventNodeCompleted:
			if r.metrics != nil {
				r.metrics.RecordNode(ev.Node, ev.Duration, false)
			}
		case workflow.EventNodeFailed:
			if r.metrics != nil {
				r.metrics.RecordNode(ev.Node, ev.Duration, true)
			}
		case workflow.EventWorkflowCompleted:
			// Held back until the record is persisted; see finish.
			return
		}
		r.hub.Publish(req.RunID, ev)
	})

	result, runErr := exec.RunFromState(ctx, state)

	errMsg := ""
	switch {
	case runErr != nil:
		errMsg = runErr.Error()
	case result != nil && !result.Success:
		errMsg = result.Error
	}
	r.finish(ctx, req, state, result, errMsg, start)
}

// finish persists the run outcome, records metrics, and only then lets
// subscribers see workflow_completed so a page reload finds the final
// record.
func (r *Runner) finish(ctx context.Context, req pipeline.Request, state *workflow.State, result *workflow.Result, errMsg string, start time.Time) {
	success := errMsg == ""

	updateErr := r.store.Update(ctx, req.RunID, func(rec *store.Record) error {
		if state != nil {
			for id, payload := range pipeline.SectionPayloads(state) {
				if err := rec.SetPayload(id, payload); err != nil {
					return err
				}
			}
			if meta, ok := pipeline.DocumentMetaFromState(state); ok {
				rec.Meta = meta
			}
			if doc, ok := pipeline.ReportFromState(state); ok {
				rec.Document = &store.Document{
					Filename:    doc.Filename,
					ContentType: doc.ContentType,
					Markdown:    doc.Markdown,
					Bytes:       doc.Bytes,
				}
			}
			// Privacy findings come from the fresh document text, read
			// before the message filter redacts the analysis copy.
			// Extension runs reuse the findings of the original run.
			if r.policy != nil && req.Stored == nil {
				if text, ok := pipeline.DocumentTextFromState(state); ok {
					rec.Privacy = privacyFindings(r.policy.ScanContent(text))
				}
			}
			// A completed run is sealed with a checksummed snapshot so a
			// later section extension can verify the stored state was not
			// tampered with. Raw FIR text never reaches the store.
			if success {
				redacted := state.Redacted(workflow.RootInputKey, pipeline.NodeReadPDF, pipeline.NodeTranslate, pipeline.NodeReport)
				snap, err := workflow.MarshalSnapshot(redacted, pipeline.GraphName)
				if err != nil {
					r.logger.Warn("failed to seal workflow state",
						slog.String("workflow_id", req.RunID),
						slog.Any("error", err),
					)
				} else {
					rec.Snapshot = snap
				}
			}
		}

		if result != nil {
			if rec.Timings == nil {
				rec.Timings = make(map[string]int64, len(result.NodeDurations)+1)
			}
			for node, d := range result.NodeDurations {
				rec.Timings[node] = d.Milliseconds()
			}
			rec.Timings["total"] = result.Duration.Milliseconds()
		}

		if success {
			rec.Status = store.StatusCompleted
			rec.Error = ""
		} else {
			rec.Status = store.StatusFailed
			rec.Error = errMsg
		}
		rec.CompletedAt = time.Now().UTC()
		return nil
	})
	if updateErr != nil {
		r.logger.Error("failed to persist workflow outcome",
			slog.String("workflow_id", req.RunID),
			slog.Any("error", updateErr),
		)
	}

	if r.metrics != nil {
		r.metrics.RecordWorkflow(success, time.Since(start))
		if success && state != nil {
			for id := range pipeline.SectionPayloads(state) {
				r.metrics.RecordSection(id)
			}
		}
	}

	r.auditOutcome(ctx, req, state, errMsg, time.Since(start))

	r.hub.Publish(req.RunID, workflow.Event{
		Type:  workflow.EventWorkflowCompleted,
		RunID: req.RunID,
		Error: errMsg,
	})
}

// auditOutcome reports the run to the extension seams: a lifecycle audit
// event, a sensitivity classification of the document text, and one hash
// chain entry per generated section. Seam errors are logged, never fatal.
func (r *Runner) auditOutcome(ctx context.Context, req pipeline.Request, state *workflow.State, errMsg string, elapsed time.Duration) {
	eventType, outcome := "workflow.complete", "success"
	meta := map[string]any{"duration_ms": elapsed.Milliseconds()}
	if errMsg != "" {
		eventType, outcome = "workflow.failed", "failure"
		meta["error"] = errMsg
	}

	if errMsg == "" && state != nil {
		if req.Stored == nil {
			if text, ok := pipeline.TranslatedTextFromState(state); ok {
				if res, err := r.ext.DataClassifier.Classify(ctx, text); err == nil {
					meta["classification"] = string(res.HighestLevel)
					if !res.IsClean {
						r.logger.Warn("sensitive data in analyzed document",
							slog.String("workflow_id", req.RunID),
							slog.String("classification", string(res.HighestLevel)),
							slog.Int("findings", len(res.Findings)),
						)
					}
				}
			}
		}

		payloads := pipeline.SectionPayloads(state)
		for _, id := range datatypes.AllSections {
			payload, ok := payloads[id]
			if !ok {
				continue
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			sum := sha256.Sum256(raw)
			if err := r.ext.RequestAuditor.RecordEntry(ctx, extensions.HashChainEntry{
				WorkflowID:  req.RunID,
				ContentHash: hex.EncodeToString(sum[:]),
				ContentType: "section_result",
				Metadata:    extensions.NewMetadata().Set("section", id),
			}); err != nil {
				r.logger.Warn("hash chain entry failed",
					slog.String("workflow_id", req.RunID),
					slog.String("section", id),
					slog.Any("error", err),
				)
			}
		}
	}

	if err := r.ext.AuditLogger.Log(ctx, extensions.AuditEvent{
		EventType:    eventType,
		Timestamp:    time.Now().UTC(),
		UserID:       "system",
		Action:       "execute",
		ResourceType: "workflow",
		ResourceID:   req.RunID,
		Outcome:      outcome,
		Metadata:     meta,
	}); err != nil {
		r.logger.Warn("audit log failed",
			slog.String("workflow_id", req.RunID),
			slog.Any("error", err),
		)
	}
}

// privacyFindings converts engine findings to the API's privacy shape.
func privacyFindings(findings []policy_engine.ScanFinding) []datatypes.PrivacyFinding {
	if len(findings) == 0 {
		return nil
	}
	out := make([]datatypes.PrivacyFinding, len(findings))
	for i, f := range findings {
		out[i] = datatypes.PrivacyFinding{
			Rule:           f.PatternId,
			Classification: f.ClassificationName,
			Severity:       string(f.Confidence),
			Line:           f.LineNumber,
			Match:          f.MatchedContent,
		}
	}
	return out
}
