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
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// PageSection is one tab on the results page.
type PageSection struct {
	ID    string
	Title string
	Body  template.HTML

	// Pending marks sections the workflow has not produced yet. Nodes
	// lists the workflow nodes the tab waits on, so the page can flip the
	// tab live from progress events.
	Pending bool
	Nodes   []string
}

// Page is the results page model.
type Page struct {
	WorkflowID string
	Status     string
	Error      string
	Meta       datatypes.DocumentMeta
	Sections   []PageSection
}

// BuildPage assembles the results page model: one tab per section in
// data.Sections, rendered when its payload is present and pending
// otherwise.
//
// # Inputs
//   - workflowID, status, errMsg: workflow record fields.
//   - data: decoded section payloads (FromPayloads).
//   - done: section ids that have payloads.
//   - nodesFor: section id → workflow node names, for live tab updates.
//     May be nil when the page has nothing running.
func BuildPage(workflowID, status, errMsg string, data ReportData, done map[string]bool, nodesFor func(string) []string) (Page, error) {
	page := Page{
		WorkflowID: workflowID,
		Status:     status,
		Error:      errMsg,
		Meta:       data.Meta,
	}

	for _, id := range data.Sections {
		section := PageSection{
			ID:    id,
			Title: datatypes.SectionTitle(id),
		}
		if done[id] {
			body, err := SectionFragment(data, id)
			if err != nil {
				return Page{}, err
			}
			if body == "" {
				body = template.HTML("<p class=\"empty\">Nothing to show for this section.</p>")
			}
			section.Body = body
		} else {
			section.Pending = true
			if nodesFor != nil {
				section.Nodes = nodesFor(id)
			}
		}
		page.Sections = append(page.Sections, section)
	}
	return page, nil
}

// RenderPage writes the results page HTML.
func RenderPage(w io.Writer, page Page) error {
	if err := pageTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render results page: %w", err)
	}
	return nil
}

// NotFoundPage renders the 404 page for an unknown workflow id.
func NotFoundPage(workflowID string) []byte {
	var b strings.Builder
	_ = notFoundTemplate.Execute(&b, struct{ WorkflowID string }{workflowID})
	return []byte(b.String())
}

const pageStyle = reportStyle + `
header.page {
  max-width: 920px; margin: 2rem auto 0; padding: 0 3rem;
  display: flex; align-items: baseline; gap: 1rem; flex-wrap: wrap;
}
header.page h1 { border: none; margin: 0; }
.badge { padding: .15rem .6rem; border-radius: 999px; font-size: .8rem; font-weight: 600; }
.badge.running { background: #fff3cd; color: #7a5d00; }
.badge.completed { background: #d7f2dd; color: #1a6a2e; }
.badge.failed { background: #f8d7da; color: #842029; }
.download {
  margin-left: auto; padding: .45rem 1rem; border-radius: 6px;
  background: #1f4e79; color: #fff; text-decoration: none; font-size: .9rem;
}
.banner {
  max-width: 920px; margin: 1rem auto 0; padding: .75rem 1.25rem;
  background: #f8d7da; color: #842029; border: 1px solid #eec0c4; border-radius: 6px;
}
nav.tabs {
  max-width: 920px; margin: 1.5rem auto 0; padding: 0 3rem;
  display: flex; gap: .25rem; flex-wrap: wrap;
}
nav.tabs button {
  border: 1px solid #dde2e8; border-bottom: none; background: #eef2f6;
  padding: .5rem 1rem; border-radius: 6px 6px 0 0; cursor: pointer; font-size: .9rem;
}
nav.tabs button.active { background: #fff; font-weight: 600; }
nav.tabs button .spin { display: inline-block; margin-left: .4rem; opacity: .6; }
section.panel { display: none; }
section.panel.active { display: block; }
.two-col { display: grid; grid-template-columns: 1fr 1fr; gap: 0 2rem; }
.two-col ul { margin: .25rem 0; }
.checklist li { list-style: none; }
.checklist li::before { content: "\2610  "; }
p.empty, p.pending { color: #51606e; font-style: italic; }
`

var pageTemplate = template.Must(template.New("results").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>FIR Analysis — {{.Meta.Filename}}</title>
<style>` + pageStyle + `</style>
</head>
<body>
<header class="page">
<h1>FIR Analysis</h1>
<span class="badge {{.Status}}">{{.Status}}</span>
<span>{{.Meta.Filename}}</span>
{{- if eq .Status "completed"}}
<a class="download" href="/api/document/{{.WorkflowID}}" download>Download report</a>
{{- end}}
</header>
{{- if .Error}}
<div class="banner">{{.Error}}</div>
{{- end}}
<nav class="tabs" id="tabs">
{{- range $i, $s := .Sections}}
<button type="button" data-panel="panel-{{$s.ID}}" data-nodes="{{join $s.Nodes " "}}"{{if eq $i 0}} class="active"{{end}}>{{$s.Title}}{{if $s.Pending}}<span class="spin">&#8987;</span>{{end}}</button>
{{- end}}
</nav>
<main class="report">
{{- range $i, $s := .Sections}}
<section class="panel{{if eq $i 0}} active{{end}}" id="panel-{{$s.ID}}">
<h2>{{$s.Title}}</h2>
{{- if $s.Pending}}
<p class="pending">This section is still being generated.</p>
{{- else}}
{{$s.Body}}
{{- end}}
</section>
{{- end}}
</main>
<script>
(function () {
  var tabs = document.querySelectorAll('nav.tabs button');
  tabs.forEach(function (tab) {
    tab.addEventListener('click', function () {
      tabs.forEach(function (t) { t.classList.remove('active'); });
      document.querySelectorAll('section.panel').forEach(function (p) { p.classList.remove('active'); });
      tab.classList.add('active');
      document.getElementById(tab.dataset.panel).classList.add('active');
    });
  });

  var status = {{.Status}};
  if (status !== 'running') { return; }
  var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  var ws = new WebSocket(proto + location.host + '/api/progress/' + {{.WorkflowID}});
  var completed = {};
  ws.onmessage = function (ev) {
    var e;
    try { e = JSON.parse(ev.data); } catch (err) { return; }
    if (e.type === 'workflow_completed') { location.reload(); return; }
    if (e.type !== 'node_completed') { return; }
    completed[e.node] = true;
    tabs.forEach(function (tab) {
      var nodes = (tab.dataset.nodes || '').split(' ').filter(Boolean);
      if (nodes.length === 0 || !nodes.every(function (n) { return completed[n]; })) { return; }
      var spin = tab.querySelector('.spin');
      if (spin) { spin.textContent = '✓'; }
    });
  };
  ws.onclose = function () { setTimeout(function () { location.reload(); }, 2000); };
})();
</script>
</body>
</html>
`))

var notFoundTemplate = template.Must(template.New("notfound").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Workflow not found</title>
<style>` + reportStyle + `</style>
</head>
<body>
<main class="report">
<h1>Workflow not found</h1>
<p>No analysis exists for workflow <code>{{.WorkflowID}}</code>. It may have expired.</p>
<p><a href="/">Upload another FIR</a></p>
</main>
</body>
</html>
`))
