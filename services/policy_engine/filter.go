// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package policy_engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
)

const redactionMark = "[REDACTED]"

// PIIFilter implements extensions.MessageFilter backed by the policy
// engine's compiled patterns. FIR narratives carry phone numbers, Aadhaar
// numbers, and bank details of complainants and accused; the filter strips
// them from any text headed for logs, traces, or external services.
type PIIFilter struct {
	engine *PolicyEngine
}

func NewPIIFilter(engine *PolicyEngine) *PIIFilter {
	return &PIIFilter{engine: engine}
}

// Sanitize replaces every pattern match in s with the redaction mark.
// Use it on any FIR-derived string that must appear in a log line or an
// error message.
func (f *PIIFilter) Sanitize(s string) string {
	for _, classification := range f.engine.Classifiers {
		for _, re := range classification.CompiledPatterns {
			s = re.ReplaceAllString(s, redactionMark)
		}
	}
	return s
}

// FilterInput redacts sensitive identifiers from user-supplied text before
// it enters the pipeline.
func (f *PIIFilter) FilterInput(_ context.Context, message string) (*extensions.FilterResult, error) {
	return f.apply(message), nil
}

// FilterOutput redacts sensitive identifiers from model output before it is
// returned to the caller.
func (f *PIIFilter) FilterOutput(_ context.Context, message string) (*extensions.FilterResult, error) {
	return f.apply(message), nil
}

// FilterContext redacts sensitive identifiers from retrieved context before
// it is spliced into a prompt.
func (f *PIIFilter) FilterContext(_ context.Context, message string) (*extensions.FilterResult, error) {
	return f.apply(message), nil
}

func (f *PIIFilter) apply(message string) *extensions.FilterResult {
	findings := f.engine.ScanContent(message)
	filtered := f.Sanitize(message)

	detections := make([]extensions.Detection, 0, len(findings))
	for _, finding := range findings {
		detections = append(detections, extensions.Detection{
			Type:     strings.ToLower(finding.PatternId),
			Location: fmt.Sprintf("line %d", finding.LineNumber),
			Action:   "redacted",
		})
	}
	return &extensions.FilterResult{
		Original:    message,
		Filtered:    filtered,
		WasModified: filtered != message,
		Detections:  detections,
	}
}

var _ extensions.MessageFilter = (*PIIFilter)(nil)
