// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package extensions

import (
	"context"
	"errors"
)

// ErrMessageBlocked is returned when text is rejected by the filter.
// Implementations should wrap this error with the reason.
//
// Example:
//
//	if containsAadhaar(text) {
//	    return "", fmt.Errorf("text contains Aadhaar number: %w", ErrMessageBlocked)
//	}
var ErrMessageBlocked = errors.New("message blocked by filter")

// FilterResult contains the outcome of a filter operation.
//
// This struct provides detailed information about what the filter did,
// useful for debugging, audit trails, and user feedback.
//
// Example:
//
//	result := FilterResult{
//	    Original:    "Complainant Aadhaar 1234 5678 9012",
//	    Filtered:    "Complainant Aadhaar [REDACTED]",
//	    WasModified: true,
//	    Detections: []Detection{
//	        {Type: "aadhaar", Location: "characters 20-34", Action: "redacted"},
//	    },
//	}
type FilterResult struct {
	// Original is the input text before filtering.
	Original string

	// Filtered is the text after filtering transformations.
	// If WasModified is false, this equals Original.
	Filtered string

	// WasModified indicates if any transformations were applied.
	WasModified bool

	// WasBlocked indicates if the text was completely rejected.
	// If true, Filtered should not be used.
	WasBlocked bool

	// BlockReason explains why the text was blocked (if WasBlocked).
	BlockReason string

	// Detections lists what the filter found in the text.
	// Useful for audit logging and debugging.
	Detections []Detection
}

// Detection describes a single item found by the filter.
//
// Example:
//
//	detection := Detection{
//	    Type:     "phone_in",
//	    Location: "characters 45-55",
//	    Action:   "redacted",
//	}
type Detection struct {
	// Type categorizes what was detected.
	// Common types: "aadhaar", "pan", "phone_in", "email", "passport_in",
	// "vehicle_reg", "ifsc", "api_key", "prompt_injection"
	Type string

	// Location describes where in the text the item was found.
	// Format is implementation-specific (e.g., "characters 10-20", "line 3")
	Location string

	// Action describes what was done with the detected item.
	// Values: "redacted", "masked", "replaced", "blocked", "flagged"
	Action string

	// Original is the detected content (only populated in debug mode).
	// WARNING: This may contain sensitive data - handle carefully.
	Original string

	// Replacement is what the content was replaced with (if Action is "replaced").
	Replacement string
}

// MessageFilter transforms FIR-derived text before and after LLM processing.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Filter Pipeline
//
// Text flows through filters at three points:
//
//  1. FilterInput: Before sending FIR text to an LLM backend
//     - Redact complainant/accused PII (Aadhaar, phone, PAN)
//     - Block uploads that violate deployment policy
//     - Detect prompt injection embedded in scanned documents
//
//  2. FilterOutput: Before a generated section is stored or rendered
//     - Remove leaked identifiers the model reproduced verbatim
//     - Mask witness contact details in generated plans
//
//  3. FilterContext: Before retrieved statute or guideline text is
//     injected into a prompt
//
// # Open Source Behavior
//
// The default NopMessageFilter passes all text through unchanged. This is
// appropriate for local single-user deployments where the operator already
// has lawful access to the full FIR.
//
// # Hardened Implementation
//
// Department deployments back this interface with the policy engine so
// that PII never leaves the station boundary when a remote LLM backend
// is configured.
//
//	type PIIFilter struct {
//	    engine *policy.Engine
//	}
//
//	func (f *PIIFilter) FilterInput(ctx context.Context, msg string) (*FilterResult, error) {
//	    scan := f.engine.Scan(msg)
//	    return &FilterResult{
//	        Original:    msg,
//	        Filtered:    scan.Redacted,
//	        WasModified: scan.Redacted != msg,
//	        Detections:  scan.Detections,
//	    }, nil
//	}
//
// # Blocking vs Transforming
//
// Filters can either:
//   - Transform: Modify content and allow it through (e.g., redact Aadhaar)
//   - Block: Reject the entire text (e.g., policy violation)
//
// To block, return a FilterResult with WasBlocked=true and BlockReason set.
// The caller should then return ErrMessageBlocked to the user.
type MessageFilter interface {
	// FilterInput processes FIR text before LLM inference.
	//
	// If WasBlocked is true, the caller should:
	//  1. Log the block via AuditLogger
	//  2. Return ErrMessageBlocked to the user
	//  3. NOT send the text to the LLM
	FilterInput(ctx context.Context, message string) (*FilterResult, error)

	// FilterOutput processes an LLM response before it is stored in the
	// workflow result or rendered into a report.
	//
	// Common output filtering:
	//   - Remove accidentally reproduced identifiers
	//   - Mask generated PII
	FilterOutput(ctx context.Context, message string) (*FilterResult, error)

	// FilterContext processes retrieved context before prompt injection.
	//
	// This is called when injecting retrieved statute sections, forensic
	// guidelines, or historical case snippets into a prompt.
	FilterContext(ctx context.Context, contextMsg string) (*FilterResult, error)
}

// NopMessageFilter is the default message filter for open source.
//
// It passes all text through unchanged without any transformation or
// blocking. This is appropriate for local single-user deployments where
// content filtering isn't required.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	filter := &NopMessageFilter{}
//	result, err := filter.FilterInput(ctx, firText)
//	// result.Filtered == firText (unchanged)
//	// result.WasModified == false
//	// err == nil
type NopMessageFilter struct{}

// FilterInput returns the text unchanged.
func (f *NopMessageFilter) FilterInput(ctx context.Context, message string) (*FilterResult, error) {
	return &FilterResult{
		Original:    message,
		Filtered:    message,
		WasModified: false,
		WasBlocked:  false,
		Detections:  nil,
	}, nil
}

// FilterOutput returns the text unchanged.
func (f *NopMessageFilter) FilterOutput(ctx context.Context, message string) (*FilterResult, error) {
	return &FilterResult{
		Original:    message,
		Filtered:    message,
		WasModified: false,
		WasBlocked:  false,
		Detections:  nil,
	}, nil
}

// FilterContext returns the context unchanged.
func (f *NopMessageFilter) FilterContext(ctx context.Context, contextMsg string) (*FilterResult, error) {
	return &FilterResult{
		Original:    contextMsg,
		Filtered:    contextMsg,
		WasModified: false,
		WasBlocked:  false,
		Detections:  nil,
	}, nil
}

// Compile-time interface compliance check.
var _ MessageFilter = (*NopMessageFilter)(nil)
