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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
)

// HandleUpload accepts a multipart FIR PDF plus an optional sections
// field, registers the workflow, and starts the analysis in the
// background.
//
// Responds 200 with {"success": true, "workflow_id": ..., "redirect_url": ...}
// once the workflow is queued. The sections field accepts either a JSON
// array or a comma-separated list; empty means every section.
func HandleUpload(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleUpload")
		defer span.End()

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, deps.uploadLimit())

		fileHeader, err := c.FormFile("file")
		if err != nil {
			recordUpload(deps, "rejected")
			detail(c, http.StatusBadRequest, "No file uploaded")
			return
		}
		if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
			recordUpload(deps, "rejected")
			detail(c, http.StatusBadRequest, "Only PDF files are allowed")
			return
		}

		sections, err := parseSectionsField(c.PostForm("sections"))
		if err != nil {
			recordUpload(deps, "rejected")
			detail(c, http.StatusBadRequest, err.Error())
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			recordUpload(deps, "error")
			detail(c, http.StatusInternalServerError, fmt.Sprintf("Error processing file: %v", err))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			recordUpload(deps, "error")
			detail(c, http.StatusInternalServerError, fmt.Sprintf("Error processing file: %v", err))
			return
		}
		if len(data) == 0 {
			recordUpload(deps, "rejected")
			detail(c, http.StatusBadRequest, "Uploaded file is empty")
			return
		}

		workflowID := uuid.NewString()
		rec := &store.Record{
			WorkflowID: workflowID,
			Status:     store.StatusRunning,
			Sections:   sections,
			CreatedAt:  time.Now().UTC(),
		}
		rec.Meta.Filename = filepath.Base(fileHeader.Filename)
		rec.Meta.SizeBytes = int64(len(data))

		if err := deps.Store.Put(ctx, rec); err != nil {
			recordUpload(deps, "error")
			detail(c, http.StatusInternalServerError, fmt.Sprintf("Error processing file: %v", err))
			return
		}

		// Open the chain of custody before the workflow can append section
		// entries: the upload hash is always link one.
		user := auditUser(c)
		sum := sha256.Sum256(data)
		deps.chainEntry(ctx, extensions.HashChainEntry{
			WorkflowID:  workflowID,
			ContentHash: hex.EncodeToString(sum[:]),
			ContentType: "fir_upload",
			Metadata:    extensions.NewMetadata().Set("filename", rec.Meta.Filename).Set("user_id", user),
		})
		deps.auditEvent(ctx, extensions.AuditEvent{
			EventType:    "workflow.start",
			Timestamp:    time.Now().UTC(),
			UserID:       user,
			Action:       "create",
			ResourceType: "workflow",
			ResourceID:   workflowID,
			Outcome:      "success",
			Metadata: map[string]any{
				"filename": rec.Meta.Filename,
				"sections": len(sections),
			},
		})

		deps.Runner.Start(pipeline.Request{
			RunID:    workflowID,
			Filename: rec.Meta.Filename,
			PDF:      data,
			Sections: sections,
		})

		deps.logger().Info("workflow started",
			slog.String("workflow_id", workflowID),
			slog.String("filename", rec.Meta.Filename),
			slog.Int("size_bytes", len(data)),
			slog.Int("sections", len(sections)),
		)
		recordUpload(deps, "accepted")

		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"workflow_id":  workflowID,
			"redirect_url": "/results/" + workflowID,
		})
	}
}

func recordUpload(deps *Deps, status string) {
	if deps.Metrics != nil {
		deps.Metrics.RecordUpload(status)
	}
}

// parseSectionsField interprets the form's sections value: a JSON array
// when it looks like one, a comma-separated list otherwise. Identifiers
// are validated and canonicalized; empty means every section.
func parseSectionsField(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	var requested []string
	switch {
	case raw == "":
		// all sections
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &requested); err != nil {
			return nil, fmt.Errorf("invalid sections value: %v", err)
		}
	default:
		requested = strings.Split(raw, ",")
	}
	return pipeline.NormalizeSections(requested)
}
