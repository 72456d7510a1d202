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

import "context"

// =============================================================================
// Data Classification Types
// =============================================================================

// DataClassification represents the sensitivity level of data.
//
// Classifications follow common data handling policies for case material.
// Higher levels require stricter handling controls.
//
// Example:
//
//	switch classification {
//	case ClassificationSecret:
//	    // Encrypt, audit access, restrict to need-to-know
//	case ClassificationPII:
//	    // Redact in logs, apply retention policies
//	case ClassificationConfidential:
//	    // Internal use only, no external sharing
//	case ClassificationPublic:
//	    // Safe to share externally
//	}
type DataClassification string

const (
	// ClassificationPublic indicates data that can be freely shared.
	// Examples: statute text, published judgments, public notifications.
	ClassificationPublic DataClassification = "PUBLIC"

	// ClassificationConfidential indicates internal-only data.
	// Examples: investigation plans, case strategy, witness schedules.
	ClassificationConfidential DataClassification = "CONFIDENTIAL"

	// ClassificationPII indicates personally identifiable information.
	// Examples: Aadhaar numbers, PAN, phone numbers, addresses of
	// complainants, witnesses, or the accused.
	ClassificationPII DataClassification = "PII"

	// ClassificationSecret indicates highly sensitive data.
	// Examples: API keys, passwords, informant identities.
	// Requires encryption at rest and in transit, strict access controls.
	ClassificationSecret DataClassification = "SECRET"
)

// ClassificationResult contains the outcome of data classification.
//
// A single document may contain multiple classifications (an FIR carries
// both PII and confidential investigation detail). The HighestLevel field
// provides a single value for quick policy decisions.
//
// Example:
//
//	result, _ := classifier.Classify(ctx, firText)
//	if result.HighestLevel == ClassificationSecret {
//	    log.Warn("secret data detected", "findings", len(result.Findings))
//	    return errors.New("cannot send to remote backend")
//	}
type ClassificationResult struct {
	// HighestLevel is the most sensitive classification found.
	// Use this for quick policy decisions (e.g., block if SECRET).
	HighestLevel DataClassification

	// Findings lists all detected sensitive data with details.
	// May be empty if nothing sensitive was found (HighestLevel == PUBLIC).
	Findings []ClassificationFinding

	// IsClean is true if no sensitive data was detected.
	// Equivalent to HighestLevel == ClassificationPublic && len(Findings) == 0.
	IsClean bool
}

// ClassificationFinding describes a single piece of classified data.
//
// Example:
//
//	finding := ClassificationFinding{
//	    Classification: ClassificationPII,
//	    Type:           "aadhaar",
//	    Location:       "line 5, characters 10-24",
//	    Pattern:        "aadhaar_regex",
//	    Snippet:        "1234 56...",  // Truncated for logging
//	}
type ClassificationFinding struct {
	// Classification is the sensitivity level of this finding.
	Classification DataClassification

	// Type describes what kind of data was found.
	// Examples: "aadhaar", "pan", "phone_in", "email", "api_key"
	Type string

	// Location describes where in the content the data was found.
	// Format is implementation-specific (e.g., "line 5", "offset 100-120").
	Location string

	// Pattern identifies which detection rule matched.
	// Useful for debugging and tuning classification rules.
	Pattern string

	// Snippet is a truncated/redacted portion of the matched content.
	// Used for audit logs without exposing full sensitive data.
	// Should be safe to log (first/last few characters only).
	Snippet string
}

// =============================================================================
// DataClassifier Interface
// =============================================================================

// DataClassifier scans data to determine its sensitivity classification.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopDataClassifier always returns PUBLIC classification,
// indicating no sensitive data was detected. The bundled policy engine
// provides a real pattern-based implementation tuned for Indian identity
// documents.
//
// # Usage
//
// Classify FIR-derived text before it leaves the deployment boundary,
// typically before dispatch to a remote LLM backend:
//
//	result, err := classifier.Classify(ctx, firText)
//	if err != nil {
//	    return fmt.Errorf("classification failed: %w", err)
//	}
//	if result.HighestLevel == ClassificationSecret {
//	    return errors.New("cannot process text containing secrets")
//	}
//	for _, f := range result.Findings {
//	    auditLogger.Log(ctx, AuditEvent{
//	        EventType: "data.classified",
//	        Metadata: map[string]any{
//	            "classification": f.Classification,
//	            "type":           f.Type,
//	        },
//	    })
//	}
//
// # Limitations
//
//   - Pattern-based detection has false positives/negatives
//   - Context matters: a 12-digit number could be Aadhaar or a case number
//   - New formats require pattern updates
//
// # Assumptions
//
//   - Content is UTF-8 encoded text
//   - Classifications are hierarchical (SECRET > PII > CONFIDENTIAL > PUBLIC)
type DataClassifier interface {
	// Classify analyzes content and returns its sensitivity classification.
	//
	// Scans the provided content for patterns indicating sensitive data
	// and returns the highest classification found along with detailed
	// findings. The result is never nil on success.
	Classify(ctx context.Context, content string) (*ClassificationResult, error)

	// ClassifyBatch analyzes multiple content items efficiently.
	//
	// Results are returned in the same order as the input. Implementations
	// may process items in parallel.
	ClassifyBatch(ctx context.Context, contents []string) ([]*ClassificationResult, error)
}

// =============================================================================
// No-Op Implementation
// =============================================================================

// NopDataClassifier is the default classifier for open source.
//
// It always returns PUBLIC classification with no findings, indicating
// no sensitive data was detected. This allows the service to function
// without classification infrastructure.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	classifier := &NopDataClassifier{}
//	result, err := classifier.Classify(ctx, "Aadhaar 1234 5678 9012")
//	// result.HighestLevel == ClassificationPublic
//	// result.IsClean == true
//	// err == nil
type NopDataClassifier struct{}

// Classify always returns PUBLIC classification with no findings.
func (c *NopDataClassifier) Classify(_ context.Context, _ string) (*ClassificationResult, error) {
	return &ClassificationResult{
		HighestLevel: ClassificationPublic,
		Findings:     nil,
		IsClean:      true,
	}, nil
}

// ClassifyBatch always returns PUBLIC classification for all items.
func (c *NopDataClassifier) ClassifyBatch(_ context.Context, contents []string) ([]*ClassificationResult, error) {
	results := make([]*ClassificationResult, len(contents))
	for i := range contents {
		results[i] = &ClassificationResult{
			HighestLevel: ClassificationPublic,
			Findings:     nil,
			IsClean:      true,
		}
	}
	return results, nil
}

// =============================================================================
// Interface Compliance
// =============================================================================

// Compile-time interface compliance check.
var _ DataClassifier = (*NopDataClassifier)(nil)
