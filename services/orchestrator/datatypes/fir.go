// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package datatypes holds the wire and payload types shared between the
// pipeline, the document generator, the results store, and the HTTP
// handlers. Field names follow the JSON keys the results API exposes.
package datatypes

// DocumentMeta describes an uploaded FIR document without carrying its
// content. This is what the results API reports; raw text never leaves
// the pipeline.
type DocumentMeta struct {
	Filename    string `json:"filename"`
	Pages       int    `json:"pages,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`

	// DetectedLanguage and Translated record what the translator did.
	DetectedLanguage string `json:"detected_language,omitempty"`
	Translated       bool   `json:"translated,omitempty"`
}

// FIRFacts is the structured fact sheet extracted from the FIR body.
type FIRFacts struct {
	FIRNumber        string   `json:"fir_number,omitempty"`
	PoliceStation    string   `json:"police_station,omitempty"`
	District         string   `json:"district,omitempty"`
	OffenceDateTime  string   `json:"offence_datetime,omitempty"`
	ReportDateTime   string   `json:"report_datetime,omitempty"`
	Complainant      string   `json:"complainant,omitempty"`
	Accused          []string `json:"accused,omitempty"`
	OffenceSummary   string   `json:"offence_summary,omitempty"`
	PropertyInvolved string   `json:"property_involved,omitempty"`
	Witnesses        []string `json:"witnesses,omitempty"`

	// SectionsCited are the statutory sections the FIR itself names,
	// distinct from the sections the mapping nodes derive.
	SectionsCited []string `json:"sections_cited,omitempty"`
}

// StatuteEntry is one mapped statutory section for an act.
type StatuteEntry struct {
	SectionNumber        string `json:"section_number"`
	SectionDescription   string `json:"section_description"`
	WhySectionIsRelevant string `json:"why_section_is_relevant"`
	Source               string `json:"source,omitempty"`
}

// ActMapping is the statute mapping result for a single act.
type ActMapping struct {
	Act      string         `json:"act"`
	ActTitle string         `json:"act_title,omitempty"`
	Sections []StatuteEntry `json:"sections"`

	// Note explains degraded results, e.g. when the statute corpus is
	// not available and no sections could be mapped.
	Note string `json:"note,omitempty"`
}

// InvestigationPlan is the grounded plan for the investigating officer.
type InvestigationPlan struct {
	SummaryPoints []string `json:"summary_points,omitempty"`
	Plan          string   `json:"plan,omitempty"`
	NextSteps     []string `json:"next_steps"`
}

// DosDonts lists conduct guidance for officers handling the case.
type DosDonts struct {
	Dos   []string `json:"dos"`
	Donts []string `json:"donts"`
}

// TimelineEvent is one entry in the chronological event timeline.
type TimelineEvent struct {
	When  string `json:"when"`
	Event string `json:"event"`
}

// HistoricalCase is one related case found by web search.
type HistoricalCase struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

// PrivacyFinding is one PII hit from scanning the FIR text.
type PrivacyFinding struct {
	Rule           string `json:"rule"`
	Classification string `json:"classification"`
	Severity       string `json:"severity,omitempty"`
	Line           int    `json:"line,omitempty"`
	Match          string `json:"match,omitempty"`
}

// ReportDocument is the generated downloadable report.
type ReportDocument struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`

	// Markdown is the source the HTML was rendered from; kept so section
	// extension can rebuild the document without re-running nodes.
	Markdown string `json:"-"`
	Bytes    []byte `json:"-"`
}
