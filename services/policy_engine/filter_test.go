// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License
// as published by the Free Software Foundation, either version 3
// of the License, or (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> and NOTICE.txt for details.

package policy_engine

import (
	"context"
	"strings"
	"testing"
)

func newTestFilter(t *testing.T) *PIIFilter {
	t.Helper()
	engine, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("Failed to initialize engine: %v", err)
	}
	return NewPIIFilter(engine)
}

func TestPIIFilter_FilterInput(t *testing.T) {
	filter := newTestFilter(t)

	message := "Aadhaar 4321 8765 1098 of the complainant was noted."
	result, err := filter.FilterInput(context.Background(), message)
	if err != nil {
		t.Fatalf("FilterInput returned error: %v", err)
	}

	if !result.WasModified {
		t.Error("Expected message to be modified")
	}
	if result.Original != message {
		t.Error("Original must be preserved verbatim")
	}
	if strings.Contains(result.Filtered, "4321 8765 1098") {
		t.Errorf("Filtered text leaks the identifier: %q", result.Filtered)
	}
	if !strings.Contains(result.Filtered, "[REDACTED]") {
		t.Errorf("Expected redaction mark in %q", result.Filtered)
	}
	if len(result.Detections) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(result.Detections))
	}
	if result.Detections[0].Type != "aadhaar_number" {
		t.Errorf("Expected detection type aadhaar_number, got %s", result.Detections[0].Type)
	}
	if result.Detections[0].Action != "redacted" {
		t.Errorf("Expected action redacted, got %s", result.Detections[0].Action)
	}
}

func TestPIIFilter_CleanMessage(t *testing.T) {
	filter := newTestFilter(t)

	message := "The forwarding report reached the magistrate within 24 hours."
	result, err := filter.FilterInput(context.Background(), message)
	if err != nil {
		t.Fatalf("FilterInput returned error: %v", err)
	}

	if result.WasModified {
		t.Error("Clean message must not be modified")
	}
	if result.Filtered != message {
		t.Errorf("Filtered text changed: %q", result.Filtered)
	}
	if len(result.Detections) != 0 {
		t.Errorf("Expected 0 detections, got %d", len(result.Detections))
	}
}

func TestPIIFilter_FilterOutputAndContext(t *testing.T) {
	filter := newTestFilter(t)
	message := "Reach the panch witness at 9876543210 before the hearing."

	out, err := filter.FilterOutput(context.Background(), message)
	if err != nil {
		t.Fatalf("FilterOutput returned error: %v", err)
	}
	if !out.WasModified || strings.Contains(out.Filtered, "9876543210") {
		t.Errorf("FilterOutput did not redact: %q", out.Filtered)
	}

	cctx, err := filter.FilterContext(context.Background(), message)
	if err != nil {
		t.Fatalf("FilterContext returned error: %v", err)
	}
	if !cctx.WasModified || strings.Contains(cctx.Filtered, "9876543210") {
		t.Errorf("FilterContext did not redact: %q", cctx.Filtered)
	}
}

func TestSanitize_MultiplePatterns(t *testing.T) {
	filter := newTestFilter(t)

	out := filter.Sanitize("Reach 9876543210 or write to complainant@example.in today.")
	if strings.Contains(out, "9876543210") {
		t.Errorf("Phone number survived sanitization: %q", out)
	}
	if strings.Contains(out, "complainant@example.in") {
		t.Errorf("Email survived sanitization: %q", out)
	}
	if got := strings.Count(out, "[REDACTED]"); got != 2 {
		t.Errorf("Expected 2 redaction marks, got %d in %q", got, out)
	}
}

func TestSanitize_NoMatch(t *testing.T) {
	filter := newTestFilter(t)

	in := "Chain of custody documented without gaps."
	if out := filter.Sanitize(in); out != in {
		t.Errorf("Sanitize altered safe text: %q", out)
	}
}
