// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package handlers implements the FIR analysis HTTP API: document upload,
// results retrieval, report download, section extension, live progress,
// and corpus administration.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/middleware"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/observability"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/policy_engine"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/retrieval"
)

var tracer = otel.Tracer("fir.handlers")

// DefaultUploadMaxBytes caps uploaded PDFs when UPLOAD_MAX_BYTES is unset.
const DefaultUploadMaxBytes = 25 << 20

// detailNotFound is the 404 body for an unknown workflow id. The casing is
// part of the API contract; store.ErrNotFound is the Go-side sentinel.
const detailNotFound = "Workflow result not found"

// Deps carries everything the API handlers touch. Weaviate, Ingestor and
// Policy may be nil; the affected endpoints degrade (503 for corpus
// ingest, no readiness signal in /health, no privacy findings).
type Deps struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Runner   *Runner
	Hub      *Hub
	Metrics  *observability.AnalysisMetrics
	Policy   *policy_engine.PolicyEngine
	Weaviate *weaviate.Client
	Ingestor *retrieval.Ingestor
	Logger   *slog.Logger

	// Ext carries the deployment extension seams consumed on the request
	// path: the audit trail and the chain-of-custody auditor. Nil behaves
	// like extensions.DefaultOptions().
	Ext *extensions.ServiceOptions

	// LLMBackend is the configured backend name reported by /health.
	LLMBackend string

	// UploadMaxBytes caps the multipart request body. <= 0 uses
	// DefaultUploadMaxBytes.
	UploadMaxBytes int64
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Deps) uploadLimit() int64 {
	if d.UploadMaxBytes > 0 {
		return d.UploadMaxBytes
	}
	return DefaultUploadMaxBytes
}

var (
	nopAudit    = &extensions.NopAuditLogger{}
	nopRequests = &extensions.NopRequestAuditor{}
)

func (d *Deps) audit() extensions.AuditLogger {
	if d.Ext != nil && d.Ext.AuditLogger != nil {
		return d.Ext.AuditLogger
	}
	return nopAudit
}

func (d *Deps) requests() extensions.RequestAuditor {
	if d.Ext != nil && d.Ext.RequestAuditor != nil {
		return d.Ext.RequestAuditor
	}
	return nopRequests
}

// auditEvent records an audit event. Audit failures never fail the request
// they describe; they are logged and the response proceeds.
func (d *Deps) auditEvent(ctx context.Context, ev extensions.AuditEvent) {
	if err := d.audit().Log(ctx, ev); err != nil {
		d.logger().Warn("audit log failed",
			slog.String("event", ev.EventType),
			slog.Any("error", err),
		)
	}
}

// chainEntry appends one link to a workflow's hash chain.
func (d *Deps) chainEntry(ctx context.Context, entry extensions.HashChainEntry) {
	if err := d.requests().RecordEntry(ctx, entry); err != nil {
		d.logger().Warn("hash chain entry failed",
			slog.String("workflow_id", entry.WorkflowID),
			slog.Any("error", err),
		)
	}
}

// auditUser names the acting user for audit events.
func auditUser(c *gin.Context) string {
	if info := middleware.GetAuthInfo(c); info != nil && info.UserID != "" {
		return info.UserID
	}
	return "anonymous"
}

// detail writes the API's error shape: {"detail": "..."}.
func detail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"detail": msg})
}

// HandleHealth reports process liveness plus dependency status.
func HandleHealth(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		weaviateUp := false
		if deps.Weaviate != nil {
			ready, err := deps.Weaviate.Misc().ReadyChecker().Do(c.Request.Context())
			weaviateUp = err == nil && ready
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"weaviate":    weaviateUp,
			"llm_backend": deps.LLMBackend,
		})
	}
}
