// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package docgen

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// converter is the shared Markdown renderer. Raw HTML in model output is
// escaped, not passed through.
var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderFragment converts Markdown to an HTML fragment for embedding in a
// page. The output carries no document wrapper.
func RenderFragment(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := converter.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// SectionFragment renders one section's body as HTML for the results page.
// List-valued sections use a two-column layout; everything else renders
// from the section's Markdown. Returns "" when the section has no content.
func SectionFragment(data ReportData, id string) (template.HTML, error) {
	switch id {
	case datatypes.SectionEvidence:
		if len(data.Checklist) == 0 {
			return "", nil
		}
		return twoColumnList(data.Checklist, "checklist"), nil
	case datatypes.SectionDosDonts:
		if data.DosDonts == nil || (len(data.DosDonts.Dos) == 0 && len(data.DosDonts.Donts) == 0) {
			return "", nil
		}
		var b strings.Builder
		if len(data.DosDonts.Dos) > 0 {
			b.WriteString("<h3>Do</h3>\n")
			b.WriteString(string(twoColumnList(data.DosDonts.Dos, "dos")))
		}
		if len(data.DosDonts.Donts) > 0 {
			b.WriteString("<h3>Don't</h3>\n")
			b.WriteString(string(twoColumnList(data.DosDonts.Donts, "donts")))
		}
		return template.HTML(b.String()), nil
	default:
		md := sectionMarkdown(data, id)
		if md == "" {
			return "", nil
		}
		return RenderFragment(md)
	}
}

// twoColumnList renders items as two balanced columns. The left column
// gets the extra item when the count is odd.
func twoColumnList(items []string, class string) template.HTML {
	split := (len(items) + 1) / 2
	var b strings.Builder
	fmt.Fprintf(&b, "<div class=\"two-col %s\">\n", template.HTMLEscapeString(class))
	for _, col := range [][]string{items[:split], items[split:]} {
		if len(col) == 0 {
			continue
		}
		b.WriteString("<ul>\n")
		for _, item := range col {
			fmt.Fprintf(&b, "<li>%s</li>\n", template.HTMLEscapeString(item))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</div>\n")
	return template.HTML(b.String())
}

// reportStyle is embedded into every generated document so the download
// renders standalone.
const reportStyle = `
:root { color-scheme: light; }
body {
  font-family: "Segoe UI", -apple-system, Roboto, sans-serif;
  color: #1c2733;
  background: #f5f6f8;
  margin: 0;
}
main.report {
  max-width: 920px;
  margin: 2rem auto;
  padding: 2.5rem 3rem;
  background: #fff;
  border: 1px solid #dde2e8;
  border-radius: 8px;
}
h1 { font-size: 1.7rem; border-bottom: 3px solid #1f4e79; padding-bottom: .4rem; }
h2 { font-size: 1.25rem; color: #1f4e79; margin-top: 2rem; border-bottom: 1px solid #dde2e8; padding-bottom: .25rem; }
h3 { font-size: 1.05rem; color: #2c3e50; }
table { border-collapse: collapse; width: 100%; margin: .75rem 0; font-size: .92rem; }
th, td { border: 1px solid #ccd4dc; padding: .45rem .6rem; text-align: left; vertical-align: top; }
th { background: #eef2f6; }
code { background: #eef2f6; padding: .1rem .3rem; border-radius: 3px; font-size: .85em; word-break: break-all; }
blockquote { border-left: 4px solid #c9d4df; margin: .75rem 0; padding: .25rem 1rem; color: #51606e; }
ul.contains-task-list { list-style: none; padding-left: .25rem; }
a { color: #1f4e79; }
`

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>{{.Style}}</style>
</head>
<body>
<main class="report">
{{.Body}}
</main>
</body>
</html>
`))

// renderDocument wraps rendered Markdown into a standalone HTML document.
func renderDocument(title, markdown string) ([]byte, error) {
	body, err := RenderFragment(markdown)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = documentTemplate.Execute(&buf, struct {
		Title string
		Style template.CSS
		Body  template.HTML
	}{
		Title: title,
		Style: template.CSS(reportStyle),
		Body:  body,
	})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}
