// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/handlers"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/middleware"
)

// SetupRoutes registers the FIR analysis API.
//
// The upload form, results pages, and workflow APIs authenticate through
// the configured provider (NopAuthProvider by default, which admits
// everything). /health and /metrics stay open for probes and scrapers.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps, opts *extensions.ServiceOptions) {
	router.GET("/health", handlers.HandleHealth(deps))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/")
	authed.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		authed.GET("/", handlers.HandleIndex())
		authed.POST("/upload", handlers.HandleUpload(deps))
		authed.GET("/results/:workflow_id", handlers.HandleResultsPage(deps))

		api := authed.Group("/api")
		{
			api.GET("/results/:workflow_id", handlers.HandleResultsAPI(deps))
			api.GET("/document/:workflow_id", handlers.HandleDocument(deps))
			api.POST("/sections/:workflow_id", handlers.HandleSections(deps))
			api.GET("/progress/:workflow_id", handlers.HandleProgress(deps))
			api.POST("/corpus/ingest", handlers.HandleCorpusIngest(deps))
		}
	}
}
