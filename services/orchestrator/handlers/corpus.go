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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/retrieval"
)

// HandleCorpusIngest loads statute or guideline corpus chunks from a
// JSONL request body into the vector store.
//
// The kind query parameter selects the corpus: "statutes" (default) or
// "guidelines". Responds 503 when no vector store is configured.
func HandleCorpusIngest(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleCorpusIngest")
		defer span.End()

		if deps.Ingestor == nil {
			detail(c, http.StatusServiceUnavailable, "vector store not configured")
			return
		}

		kind := c.DefaultQuery("kind", "statutes")
		var (
			count int
			err   error
		)
		switch kind {
		case "statutes":
			records, readErr := retrieval.ReadStatuteJSONL(c.Request.Body)
			if readErr != nil {
				detail(c, http.StatusBadRequest, readErr.Error())
				return
			}
			count, err = deps.Ingestor.IngestStatutes(ctx, records)
		case "guidelines":
			records, readErr := retrieval.ReadGuidelineJSONL(c.Request.Body)
			if readErr != nil {
				detail(c, http.StatusBadRequest, readErr.Error())
				return
			}
			count, err = deps.Ingestor.IngestGuidelines(ctx, records)
		default:
			detail(c, http.StatusBadRequest, fmt.Sprintf("unknown corpus kind %q", kind))
			return
		}
		if err != nil {
			deps.logger().Error("corpus ingestion failed",
				slog.String("kind", kind),
				slog.Any("error", err),
			)
			detail(c, http.StatusInternalServerError, err.Error())
			return
		}

		deps.logger().Info("corpus ingested", slog.String("kind", kind), slog.Int("chunks", count))
		c.JSON(http.StatusOK, gin.H{"success": true, "kind": kind, "chunks": count})
	}
}
