// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package pipeline

import (
	"fmt"
	"strings"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// renderFactsText renders extracted facts as plain text for use inside
// downstream prompts. It is also the source text when a stored analysis
// is extended and the original document is no longer available.
func renderFactsText(facts datatypes.FIRFacts) string {
	var b strings.Builder

	writeField := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}
	writeList := func(label string, values []string) {
		if len(values) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(values, "; "))
	}

	writeField("FIR Number", facts.FIRNumber)
	writeField("Police Station", facts.PoliceStation)
	writeField("District", facts.District)
	writeField("Date and Time of Offence", facts.OffenceDateTime)
	writeField("Date and Time of Report", facts.ReportDateTime)
	writeField("Complainant", facts.Complainant)
	writeList("Accused", facts.Accused)
	writeField("Summary of Offence", facts.OffenceSummary)
	writeField("Property Involved", facts.PropertyInvolved)
	writeList("Witnesses", facts.Witnesses)
	writeList("Sections Cited in FIR", facts.SectionsCited)

	text := strings.TrimRight(b.String(), "\n")
	if text == "" {
		return "No facts were extracted from the FIR."
	}
	return text
}

// renderMappedSections renders the per-act section mappings as labelled
// blocks, one block per act, for use inside downstream prompts.
func renderMappedSections(mappings []datatypes.ActMapping) string {
	var b strings.Builder
	for _, m := range mappings {
		if len(m.Sections) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s Sections:\n", m.Act)
		for _, s := range m.Sections {
			fmt.Fprintf(&b, "- Section %s: %s\n", s.SectionNumber, s.SectionDescription)
			if s.WhySectionIsRelevant != "" {
				fmt.Fprintf(&b, "  Relevance: %s\n", s.WhySectionIsRelevant)
			}
		}
		b.WriteString("\n")
	}

	text := strings.TrimRight(b.String(), "\n")
	if text == "" {
		return "No statute sections were mapped for this FIR."
	}
	return text
}

// truncateRunes bounds prompt inputs that embed external content.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
