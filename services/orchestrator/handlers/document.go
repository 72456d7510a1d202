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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/docgen"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
)

// HandleDocument serves the generated report as a download.
//
// 404 for an unknown workflow, 409 while it is still running or after it
// failed (there is no report to download). The report is rebuilt from
// stored payloads when the rendered bytes did not survive the backend
// (BadgerStore persists payloads, not the rendering).
func HandleDocument(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleDocument")
		defer span.End()

		rec, err := deps.Store.Get(ctx, c.Param("workflow_id"))
		if errors.Is(err, store.ErrNotFound) {
			detail(c, http.StatusNotFound, detailNotFound)
			return
		}
		if err != nil {
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if rec.Running() {
			detail(c, http.StatusConflict, "Workflow still running")
			return
		}
		if rec.Status == store.StatusFailed {
			msg := "Workflow failed"
			if rec.Error != "" {
				msg += ": " + rec.Error
			}
			detail(c, http.StatusConflict, msg)
			return
		}

		doc := rec.Document
		if doc == nil {
			rebuilt, err := rebuildDocument(rec)
			if err != nil {
				detail(c, http.StatusInternalServerError, err.Error())
				return
			}
			doc = rebuilt
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
		c.Data(http.StatusOK, doc.ContentType, doc.Bytes)

		user := auditUser(c)
		sum := sha256.Sum256(doc.Bytes)
		deps.chainEntry(ctx, extensions.HashChainEntry{
			WorkflowID:  rec.WorkflowID,
			ContentHash: hex.EncodeToString(sum[:]),
			ContentType: "report_download",
			Metadata:    extensions.NewMetadata().Set("filename", doc.Filename).Set("user_id", user),
		})
		deps.auditEvent(ctx, extensions.AuditEvent{
			EventType:    "document.download",
			Timestamp:    time.Now().UTC(),
			UserID:       user,
			Action:       "download",
			ResourceType: "document",
			ResourceID:   rec.WorkflowID,
			Outcome:      "success",
			Metadata:     map[string]any{"filename": doc.Filename},
		})
	}
}

func rebuildDocument(rec *store.Record) (*store.Document, error) {
	data, err := docgen.FromPayloads(rec.Meta, rec.Sections, rec.Payloads)
	if err != nil {
		return nil, err
	}
	report, err := docgen.BuildReport(data)
	if err != nil {
		return nil, err
	}
	return &store.Document{
		Filename:    report.Filename,
		ContentType: report.ContentType,
		Markdown:    report.Markdown,
		Bytes:       report.Bytes,
	}, nil
}
