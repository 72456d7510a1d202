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

	"github.com/gin-gonic/gin"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/docgen"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
)

// HandleResultsAPI returns the workflow record as JSON: status, the
// section payloads generated so far, document metadata, privacy
// findings, and timings.
func HandleResultsAPI(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleResultsAPI")
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
		c.JSON(http.StatusOK, rec)
	}
}

// HandleResultsPage renders the results page: one tab per requested
// section, with pending tabs updating live over the progress WebSocket
// while the workflow runs.
func HandleResultsPage(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleResultsPage")
		defer span.End()

		workflowID := c.Param("workflow_id")
		rec, err := deps.Store.Get(ctx, workflowID)
		if errors.Is(err, store.ErrNotFound) {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", docgen.NotFoundPage(workflowID))
			return
		}
		if err != nil {
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}

		data, err := docgen.FromPayloads(rec.Meta, rec.Sections, rec.Payloads)
		if err != nil {
			deps.logger().Error("failed to decode stored payloads",
				slog.String("workflow_id", workflowID),
				slog.Any("error", err),
			)
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}

		done := make(map[string]bool, len(rec.Payloads))
		for id := range rec.Payloads {
			done[id] = true
		}

		page, err := docgen.BuildPage(workflowID, rec.Status, rec.Error, data, done, pipeline.SectionNodes)
		if err != nil {
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}

		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := docgen.RenderPage(c.Writer, page); err != nil {
			deps.logger().Error("failed to render results page",
				slog.String("workflow_id", workflowID),
				slog.Any("error", err),
			)
		}
	}
}
