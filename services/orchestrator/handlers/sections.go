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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// SectionsRequest is the body of POST /api/sections/{workflow_id}.
type SectionsRequest struct {
	Sections []string `json:"sections" binding:"required"`
}

// HandleSections extends a finished analysis with additional sections.
// The new workflow reuses the stored payloads as completed node outputs,
// so only the missing nodes run.
func HandleSections(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleSections")
		defer span.End()

		workflowID := c.Param("workflow_id")

		var req SectionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			detail(c, http.StatusBadRequest, "sections list is required")
			return
		}
		sections, err := pipeline.NormalizeSections(req.Sections)
		if err != nil {
			detail(c, http.StatusBadRequest, err.Error())
			return
		}

		rec, err := deps.Store.Get(ctx, workflowID)
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

		// The runner seals completed runs with a checksummed snapshot.
		// Refuse to build on stored payloads that no longer match it.
		if len(rec.Snapshot) > 0 {
			if _, err := workflow.UnmarshalSnapshot(rec.Snapshot); err != nil {
				deps.logger().Error("stored workflow state failed verification",
					slog.String("workflow_id", workflowID),
					slog.Any("error", err),
				)
				detail(c, http.StatusConflict, "Stored workflow state failed integrity verification")
				return
			}
		}

		missing := make([]string, 0, len(sections))
		for _, id := range sections {
			if !rec.HasSection(id) {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			c.JSON(http.StatusOK, gin.H{
				"success":      true,
				"workflow_id":  workflowID,
				"redirect_url": "/results/" + workflowID,
			})
			return
		}

		stored := &pipeline.Stored{Meta: rec.Meta, Payloads: rec.Payloads}
		updateErr := deps.Store.Update(ctx, workflowID, func(r *store.Record) error {
			r.Status = store.StatusRunning
			r.Error = ""
			for _, id := range missing {
				r.Sections = appendMissing(r.Sections, id)
			}
			return nil
		})
		if updateErr != nil {
			detail(c, http.StatusInternalServerError, updateErr.Error())
			return
		}

		deps.Runner.Start(pipeline.Request{
			RunID:    workflowID,
			Filename: rec.Meta.Filename,
			Sections: sections,
			Stored:   stored,
		})

		deps.logger().Info("workflow extended",
			slog.String("workflow_id", workflowID),
			slog.Any("sections", missing),
		)
		deps.auditEvent(ctx, extensions.AuditEvent{
			EventType:    "workflow.extend",
			Timestamp:    time.Now().UTC(),
			UserID:       auditUser(c),
			Action:       "extend",
			ResourceType: "workflow",
			ResourceID:   workflowID,
			Outcome:      "success",
			Metadata:     map[string]any{"sections": len(missing)},
		})
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"workflow_id":  workflowID,
			"redirect_url": "/results/" + workflowID,
		})
	}
}

func appendMissing(list []string, id string) []string {
	for _, have := range list {
		if have == id {
			return list
		}
	}
	return append(list, id)
}
