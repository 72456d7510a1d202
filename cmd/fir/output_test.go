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
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/policy_engine"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old
	data, _ := io.ReadAll(r)
	return string(data)
}

// ============================================================================
// OutputResult Exit Codes
// ============================================================================

func TestOutputResult_QuietSuccess(t *testing.T) {
	cfg := OutputConfig{Quiet: true}
	out := captureStdout(t, func() {
		code := OutputResult(cfg, "test", time.Now(), "data", false, nil)
		if code != CLIExitSuccess {
			t.Errorf("expected exit %d, got %d", CLIExitSuccess, code)
		}
	})
	if out != "" {
		t.Errorf("quiet mode must not write output, got %q", out)
	}
}

func TestOutputResult_QuietFindings(t *testing.T) {
	cfg := OutputConfig{Quiet: true}
	code := OutputResult(cfg, "test", time.Now(), nil, true, nil)
	if code != CLIExitFindings {
		t.Errorf("expected exit %d, got %d", CLIExitFindings, code)
	}
}

func TestOutputResult_QuietError(t *testing.T) {
	cfg := OutputConfig{Quiet: true}
	code := OutputResult(cfg, "test", time.Now(), nil, false, errors.New("boom"))
	if code != CLIExitError {
		t.Errorf("expected exit %d, got %d", CLIExitError, code)
	}
}

func TestOutputResult_ErrorBeatsFindings(t *testing.T) {
	cfg := OutputConfig{Quiet: true}
	code := OutputResult(cfg, "test", time.Now(), nil, true, errors.New("boom"))
	if code != CLIExitError {
		t.Errorf("error must win over findings, got exit %d", code)
	}
}

// ============================================================================
// JSON Envelope
// ============================================================================

func TestOutputResult_JSONEnvelope(t *testing.T) {
	cfg := OutputConfig{JSON: true}
	data := PolicyVerifyResult{Valid: true, Hash: "sha256:abc", ByteSize: 42}

	out := captureStdout(t, func() {
		code := OutputResult(cfg, "policy verify", time.Now(), data, false, nil)
		if code != CLIExitSuccess {
			t.Errorf("expected exit %d, got %d", CLIExitSuccess, code)
		}
	})

	var result CommandResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output must be valid JSON: %v\noutput: %s", err, out)
	}
	if result.APIVersion != "1.0" {
		t.Errorf("expected api_version 1.0, got %q", result.APIVersion)
	}
	if result.Command != "policy verify" {
		t.Errorf("expected command name in envelope, got %q", result.Command)
	}
	if !result.Success {
		t.Error("expected success=true")
	}
	if result.Error != "" {
		t.Errorf("expected no error, got %q", result.Error)
	}
}

func TestOutputError_JSONMode(t *testing.T) {
	out := captureStdout(t, func() {
		OutputError(true, "Command failed", errors.New("weaviate unreachable"))
	})

	var result CommandResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("error output must be valid JSON: %v", err)
	}
	if result.Success {
		t.Error("expected success=false")
	}
	if !strings.Contains(result.Error, "weaviate unreachable") {
		t.Errorf("expected underlying error in message, got %q", result.Error)
	}
}

func TestOutputJSON_Compact(t *testing.T) {
	out := captureStdout(t, func() {
		if err := OutputJSON(map[string]int{"chunks": 7}, true); err != nil {
			t.Fatalf("OutputJSON failed: %v", err)
		}
	})
	if strings.Contains(out, "  ") {
		t.Errorf("compact output must not be indented, got %q", out)
	}
	if !strings.Contains(out, `"chunks":7`) {
		t.Errorf("unexpected compact output: %q", out)
	}
}

// ============================================================================
// Ingest Helpers
// ============================================================================

func TestFileKind_Detection(t *testing.T) {
	orig := ingestKind
	defer func() { ingestKind = orig }()

	ingestKind = ""
	if got := fileKind("/corpus/ndps_sections.jsonl"); got != "statutes" {
		t.Errorf("expected statutes, got %q", got)
	}
	if got := fileKind("/corpus/forensic_guidelines.jsonl"); got != "guidelines" {
		t.Errorf("expected guidelines, got %q", got)
	}

	ingestKind = "guidelines"
	if got := fileKind("/corpus/ndps_sections.jsonl"); got != "guidelines" {
		t.Errorf("flag must override detection, got %q", got)
	}
}

func TestCollectJSONL(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bns.jsonl", "notes.txt", "bsa.jsonl"} {
		if err := os.WriteFile(dir+"/"+name, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := collectJSONL([]string{dir})
	if err != nil {
		t.Fatalf("collectJSONL failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 jsonl files, got %d: %v", len(files), files)
	}

	if _, err := collectJSONL([]string{"/nonexistent/corpus"}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestConfidenceToSeverityString(t *testing.T) {
	tests := []struct {
		classification string
		confidence     string
		want           string
	}{
		{"SECRET", "high", "CRITICAL"},
		{"SECRET", "medium", "HIGH"},
		{"PII", "high", "HIGH"},
		{"PII", "low", "MEDIUM"},
		{"INTERNAL", "high", "HIGH"},
		{"INTERNAL", "medium", "MEDIUM"},
		{"INTERNAL", "low", "LOW"},
	}
	for _, tt := range tests {
		got := confidenceToSeverityString(tt.classification, policy_engine.ConfidenceLevel(tt.confidence))
		if got != tt.want {
			t.Errorf("confidenceToSeverityString(%q, %q) = %q, want %q",
				tt.classification, tt.confidence, got, tt.want)
		}
	}
}
