// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// vector store queries, file paths, or workflow scheduling. Using these
// validators prevents injection attacks (GraphQL filter injection, path
// traversal) and malformed workflow state.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// sectionPattern matches valid analysis section identifiers.
// Allows: lowercase letters, digits, underscores. Must start with a letter.
// Max length: 32 characters (longest shipped identifier is "historical_cases")
var sectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// actCodePattern matches valid statute act codes.
// Allows: uppercase letters and digits, e.g. BNS, BNSS, BSA, NDPS, IT2000.
// Max length: 16 characters
var actCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,15}$`)

// firNumberPattern matches FIR registration numbers as written on Indian
// FIRs: a serial number, a slash, and a four-digit year (e.g. "35/2025",
// "0423/2024").
var firNumberPattern = regexp.MustCompile(`^[0-9]{1,6}/[0-9]{4}$`)

// ValidateSection validates an analysis section identifier.
//
// Section identifiers name the units of work a workflow schedules (facts,
// statutes, investigation, ...) and appear in API paths and result keys.
//
// Valid identifiers:
//   - 1-32 characters
//   - Lowercase letters a-z, digits, underscores
//   - Must start with a letter
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateSection(section); err != nil {
//	    return nil, fmt.Errorf("invalid section: %w", err)
//	}
//	// Safe to use as a scheduling key
func ValidateSection(section string) error {
	if section == "" {
		return fmt.Errorf("section cannot be empty")
	}

	if !sectionPattern.MatchString(section) {
		return fmt.Errorf("invalid section format: %q (must be 1-32 lowercase alphanumeric chars or underscores, starting with a letter)", section)
	}

	return nil
}

// ValidateSections validates multiple section identifiers.
// Returns an error listing all invalid identifiers if any fail validation.
func ValidateSections(sections []string) error {
	var invalid []string
	for _, s := range sections {
		if err := ValidateSection(s); err != nil {
			invalid = append(invalid, s)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid sections: %v", invalid)
	}
	return nil
}

// SanitizeSection normalizes and validates a section identifier.
// Returns the lowercase identifier if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safeSection, err := validation.SanitizeSection(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeSection is lowercase and validated
func SanitizeSection(section string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(section))
	if err := ValidateSection(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateActCode validates a statute act code to prevent filter injection.
//
// Act codes are interpolated into vector store where-filters when scoping
// retrieval to a single act.
//
// Valid codes:
//   - 1-16 characters
//   - Uppercase letters A-Z and digits
//   - Must start with a letter
//
// Example:
//
//	if err := validation.ValidateActCode(act); err != nil {
//	    return nil, fmt.Errorf("invalid act: %w", err)
//	}
//	// Safe to use in a where filter
func ValidateActCode(act string) error {
	if act == "" {
		return fmt.Errorf("act code cannot be empty")
	}

	if !actCodePattern.MatchString(act) {
		return fmt.Errorf("invalid act code format: %q (must be 1-16 uppercase alphanumeric chars, starting with a letter)", act)
	}

	return nil
}

// SanitizeActCode normalizes and validates an act code.
// Returns the uppercase code if valid, or an error if invalid.
func SanitizeActCode(act string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(act))
	if err := ValidateActCode(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateWorkflowID validates a workflow identifier.
//
// Workflow IDs appear in URL paths and store keys; they must be UUIDs as
// issued by the upload endpoint. Rejecting anything else prevents path
// traversal through /api/document/{workflow_id} and store key collisions.
//
// Example:
//
//	if err := validation.ValidateWorkflowID(id); err != nil {
//	    c.JSON(http.StatusNotFound, gin.H{"error": "Workflow result not found"})
//	    return
//	}
func ValidateWorkflowID(id string) error {
	if id == "" {
		return fmt.Errorf("workflow ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid workflow ID %q: %w", id, err)
	}
	return nil
}

// ValidateFIRNumber validates an FIR registration number extracted from a
// document, e.g. "35/2025". Extraction output is untrusted LLM text, so
// anything not matching the registration format is rejected rather than
// stored.
func ValidateFIRNumber(number string) error {
	if number == "" {
		return fmt.Errorf("FIR number cannot be empty")
	}
	if !firNumberPattern.MatchString(number) {
		return fmt.Errorf("invalid FIR number format: %q (expected serial/year, e.g. 35/2025)", number)
	}
	return nil
}
