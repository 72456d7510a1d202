// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package docgen renders FIR analysis results into documents: the
// downloadable self-contained HTML report and the HTML fragments the
// results page displays per section.
//
// # Description
//
// The report is composed as GitHub-flavored Markdown from the section
// payloads, then converted to HTML with goldmark. Sections appear in the
// order ReportData.Sections lists them; sections without content are
// skipped. List-valued sections render as two balanced columns on the
// results page and as plain lists in the downloadable document.
package docgen

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// ReportData aggregates everything a report or results page renders.
// Pointer and slice fields are nil when the section was not generated.
type ReportData struct {
	Meta        datatypes.DocumentMeta
	Sections    []string
	GeneratedAt time.Time

	Facts        *datatypes.FIRFacts
	Mappings     []datatypes.ActMapping
	Plan         *datatypes.InvestigationPlan
	Checklist    []string
	DosDonts     *datatypes.DosDonts
	Weaknesses   string
	Timeline     []datatypes.TimelineEvent
	CourtSummary string
	Chargesheet  string
	Cases        []datatypes.HistoricalCase
}

// FromPayloads decodes stored section payloads into ReportData. Payload
// keys that are not section identifiers (e.g. privacy findings) are
// ignored.
//
// # Inputs
//   - meta: document metadata stored with the workflow record.
//   - sections: requested section identifiers in report order.
//   - payloads: stored section payloads keyed by section identifier.
//
// # Outputs
//   - ReportData ready for BuildReport or SectionFragment.
//   - Error when a payload does not decode as its section's type.
func FromPayloads(meta datatypes.DocumentMeta, sections []string, payloads map[string]json.RawMessage) (ReportData, error) {
	data := ReportData{
		Meta:        meta,
		Sections:    sections,
		GeneratedAt: time.Now().UTC(),
	}

	decode := func(id string, raw json.RawMessage, v any) error {
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decode %s payload: %w", id, err)
		}
		return nil
	}

	for id, raw := range payloads {
		var err error
		switch id {
		case datatypes.SectionFacts:
			var v datatypes.FIRFacts
			if err = decode(id, raw, &v); err == nil {
				data.Facts = &v
			}
		case datatypes.SectionStatutes:
			err = decode(id, raw, &data.Mappings)
		case datatypes.SectionInvestigation:
			var v datatypes.InvestigationPlan
			if err = decode(id, raw, &v); err == nil {
				data.Plan = &v
			}
		case datatypes.SectionEvidence:
			err = decode(id, raw, &data.Checklist)
		case datatypes.SectionDosDonts:
			var v datatypes.DosDonts
			if err = decode(id, raw, &v); err == nil {
				data.DosDonts = &v
			}
		case datatypes.SectionWeaknesses:
			err = decode(id, raw, &data.Weaknesses)
		case datatypes.SectionTimeline:
			err = decode(id, raw, &data.Timeline)
		case datatypes.SectionCourtSummary:
			err = decode(id, raw, &data.CourtSummary)
		case datatypes.SectionChargesheet:
			err = decode(id, raw, &data.Chargesheet)
		case datatypes.SectionHistoricalCases:
			err = decode(id, raw, &data.Cases)
		default:
			continue
		}
		if err != nil {
			return ReportData{}, err
		}
	}
	return data, nil
}

// BuildReport renders the full report document.
func BuildReport(data ReportData) (datatypes.ReportDocument, error) {
	md := BuildMarkdown(data)
	page, err := renderDocument("FIR Analysis Report", md)
	if err != nil {
		return datatypes.ReportDocument{}, err
	}
	return datatypes.ReportDocument{
		Filename:    DocumentFilename(data.Meta.Filename),
		ContentType: "text/html; charset=utf-8",
		Markdown:    md,
		Bytes:       page,
	}, nil
}

// DocumentFilename derives the report download name from the uploaded
// PDF name, e.g. "FIR_127_2025.pdf" → "FIR_127_2025_analysis.html".
func DocumentFilename(uploaded string) string {
	base := strings.TrimSuffix(filepath.Base(uploaded), filepath.Ext(uploaded))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "fir"
	}
	return base + "_analysis.html"
}

// BuildMarkdown composes the report as GitHub-flavored Markdown.
func BuildMarkdown(data ReportData) string {
	var b strings.Builder

	b.WriteString("# FIR Analysis Report\n\n")
	writeMetaTable(&b, data)

	for _, id := range data.Sections {
		body := sectionMarkdown(data, id)
		if body == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", datatypes.SectionTitle(id), body)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeMetaTable(b *strings.Builder, data ReportData) {
	b.WriteString("| | |\n|---|---|\n")
	row := func(field, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(b, "| %s | %s |\n", field, escapeCell(value))
	}

	row("Document", data.Meta.Filename)
	if data.Meta.Pages > 0 {
		row("Pages", fmt.Sprintf("%d", data.Meta.Pages))
	}
	if data.Meta.SizeBytes > 0 {
		row("Size", humanSize(data.Meta.SizeBytes))
	}
	if data.Meta.Fingerprint != "" {
		row("SHA-256", "`"+data.Meta.Fingerprint+"`")
	}
	if data.Meta.Translated {
		row("Language", fmt.Sprintf("%s (translated to English)", data.Meta.DetectedLanguage))
	} else if data.Meta.DetectedLanguage != "" {
		row("Language", data.Meta.DetectedLanguage)
	}
	if !data.GeneratedAt.IsZero() {
		row("Generated", data.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	b.WriteString("\n")
}

// sectionMarkdown renders one section body, or "" when the section has no
// content to show.
func sectionMarkdown(data ReportData, id string) string {
	switch id {
	case datatypes.SectionFacts:
		return factsMarkdown(data.Facts)
	case datatypes.SectionStatutes:
		return statutesMarkdown(data.Mappings)
	case datatypes.SectionInvestigation:
		return planMarkdown(data.Plan)
	case datatypes.SectionEvidence:
		return checklistMarkdown(data.Checklist)
	case datatypes.SectionDosDonts:
		return dosDontsMarkdown(data.DosDonts)
	case datatypes.SectionWeaknesses:
		return strings.TrimSpace(data.Weaknesses)
	case datatypes.SectionTimeline:
		return timelineMarkdown(data.Timeline)
	case datatypes.SectionCourtSummary:
		return strings.TrimSpace(data.CourtSummary)
	case datatypes.SectionChargesheet:
		return strings.TrimSpace(data.Chargesheet)
	case datatypes.SectionHistoricalCases:
		return casesMarkdown(data.Cases)
	default:
		return ""
	}
}

func factsMarkdown(facts *datatypes.FIRFacts) string {
	if facts == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("| Field | Value |\n|---|---|\n")
	row := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&b, "| %s | %s |\n", field, escapeCell(value))
	}

	row("FIR Number", facts.FIRNumber)
	row("Police Station", facts.PoliceStation)
	row("District", facts.District)
	row("Offence Date/Time", facts.OffenceDateTime)
	row("Report Date/Time", facts.ReportDateTime)
	row("Complainant", facts.Complainant)
	row("Accused", strings.Join(facts.Accused, "; "))
	row("Property Involved", facts.PropertyInvolved)
	row("Witnesses", strings.Join(facts.Witnesses, "; "))
	row("Sections Cited in FIR", strings.Join(facts.SectionsCited, "; "))

	if facts.OffenceSummary != "" {
		fmt.Fprintf(&b, "\n%s\n", facts.OffenceSummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func statutesMarkdown(mappings []datatypes.ActMapping) string {
	if len(mappings) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range mappings {
		title := m.ActTitle
		if title == "" {
			title = m.Act
		}
		fmt.Fprintf(&b, "### %s\n\n", title)
		if m.Note != "" {
			fmt.Fprintf(&b, "_%s_\n\n", m.Note)
		}
		if len(m.Sections) == 0 {
			if m.Note == "" {
				b.WriteString("_No sections mapped._\n\n")
			}
			continue
		}
		b.WriteString("| Section | Description | Why Relevant | Source |\n|---|---|---|---|\n")
		for _, s := range m.Sections {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				escapeCell(s.SectionNumber),
				escapeCell(s.SectionDescription),
				escapeCell(s.WhySectionIsRelevant),
				escapeCell(s.Source),
			)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func planMarkdown(plan *datatypes.InvestigationPlan) string {
	if plan == nil {
		return ""
	}
	var b strings.Builder
	if len(plan.SummaryPoints) > 0 {
		b.WriteString("### Case Summary\n\n")
		for _, p := range plan.SummaryPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}
	if plan.Plan != "" {
		fmt.Fprintf(&b, "### Plan\n\n%s\n\n", strings.TrimSpace(plan.Plan))
	}
	if len(plan.NextSteps) > 0 {
		b.WriteString("### Next Steps\n\n")
		for i, s := range plan.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func checklistMarkdown(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- [ ] %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}

func dosDontsMarkdown(dd *datatypes.DosDonts) string {
	if dd == nil || (len(dd.Dos) == 0 && len(dd.Donts) == 0) {
		return ""
	}
	var b strings.Builder
	if len(dd.Dos) > 0 {
		b.WriteString("### Do\n\n")
		for _, item := range dd.Dos {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	if len(dd.Donts) > 0 {
		b.WriteString("### Don't\n\n")
		for _, item := range dd.Donts {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func timelineMarkdown(events []datatypes.TimelineEvent) string {
	if len(events) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("| When | Event |\n|---|---|\n")
	for _, e := range events {
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(e.When), escapeCell(e.Event))
	}
	return strings.TrimRight(b.String(), "\n")
}

func casesMarkdown(cases []datatypes.HistoricalCase) string {
	if len(cases) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range cases {
		title := c.Title
		if title == "" {
			title = c.URL
		}
		if c.URL != "" {
			fmt.Fprintf(&b, "- [%s](%s)", inline(title), c.URL)
		} else {
			fmt.Fprintf(&b, "- %s", inline(title))
		}
		if c.Summary != "" {
			fmt.Fprintf(&b, " — %s", inline(c.Summary))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// escapeCell makes a value safe inside a GFM table cell: pipes are
// escaped and newlines collapse to spaces.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.TrimSpace(s)
}

// inline collapses a value to a single line for list items.
func inline(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
