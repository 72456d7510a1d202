// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/cmd/fir/config"
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/logging"
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/ux"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator"
	"github.com/spf13/cobra"
)

// runServe starts the analysis orchestrator in the foreground.
//
// Precedence for each setting: command-line flag, then environment
// variable, then the config file, then the orchestrator's defaults.
func runServe(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "fir-cli",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if err := config.Load(); err != nil {
		OutputError(false, "Failed to load configuration", err)
		os.Exit(CLIExitError)
	}

	cfg := serveConfig()

	ux.Info("Starting the FIR orchestrator on port " + strconv.Itoa(cfg.Port))

	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		OutputError(false, "Failed to initialize the orchestrator", err)
		os.Exit(CLIExitError)
	}

	if err := svc.Run(); err != nil {
		OutputError(false, "Orchestrator exited", err)
		os.Exit(CLIExitError)
	}
}

func serveConfig() orchestrator.Config {
	cfg := orchestrator.Config{
		Port:           envInt("ORCHESTRATOR_PORT", 0),
		LLMBackend:     os.Getenv("LLM_BACKEND_TYPE"),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		GinMode:        os.Getenv("GIN_MODE"),
		ResultsBackend: os.Getenv("RESULTS_BACKEND"),
		ResultsPath:    os.Getenv("RESULTS_PATH"),
		ResultsTTL:     envDuration("RESULTS_TTL", 0),
		UploadMaxBytes: int64(envInt("UPLOAD_MAX_BYTES", 0)),
	}

	if cfg.LLMBackend == "" {
		cfg.LLMBackend = config.Global.ModelBackend.Type
	}

	// Flags win over everything.
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveBackend != "" {
		cfg.LLMBackend = serveBackend
	}
	if serveWeaviateURL != "" {
		cfg.WeaviateURL = serveWeaviateURL
	}
	if serveResultsBackend != "" {
		cfg.ResultsBackend = serveResultsBackend
	}
	if serveResultsPath != "" {
		cfg.ResultsPath = serveResultsPath
	}
	return cfg
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
