// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package datatypes

// Report section identifiers. These are the values the upload and
// section-extension APIs accept, the keys section payloads are stored
// under, and the ids the results page tabs use.
const (
	SectionFacts           = "facts"
	SectionStatutes        = "statutes"
	SectionInvestigation   = "investigation"
	SectionEvidence        = "evidence"
	SectionDosDonts        = "dos_donts"
	SectionWeaknesses      = "weaknesses"
	SectionTimeline        = "timeline"
	SectionCourtSummary    = "court_summary"
	SectionChargesheet     = "chargesheet"
	SectionHistoricalCases = "historical_cases"
)

// AllSections lists every section identifier in report order.
var AllSections = []string{
	SectionFacts,
	SectionStatutes,
	SectionInvestigation,
	SectionEvidence,
	SectionDosDonts,
	SectionWeaknesses,
	SectionTimeline,
	SectionCourtSummary,
	SectionChargesheet,
	SectionHistoricalCases,
}

var sectionTitles = map[string]string{
	SectionFacts:           "FIR Facts",
	SectionStatutes:        "Statute Mapping",
	SectionInvestigation:   "Investigation Plan",
	SectionEvidence:        "Evidence Checklist",
	SectionDosDonts:        "Dos and Don'ts",
	SectionWeaknesses:      "Prosecution Weaknesses",
	SectionTimeline:        "Timeline of Events",
	SectionCourtSummary:    "Court Summary",
	SectionChargesheet:     "Chargesheet Draft",
	SectionHistoricalCases: "Historical Cases",
}

// SectionTitle returns the display title for a section identifier, or the
// identifier itself when unknown.
func SectionTitle(id string) string {
	if title, ok := sectionTitles[id]; ok {
		return title
	}
	return id
}
