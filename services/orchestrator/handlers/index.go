// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
)

// HandleIndex serves the upload form.
func HandleIndex() gin.HandlerFunc {
	type sectionOption struct {
		ID    string
		Title string
	}
	options := make([]sectionOption, 0, len(datatypes.AllSections))
	for _, id := range datatypes.AllSections {
		options = append(options, sectionOption{ID: id, Title: datatypes.SectionTitle(id)})
	}

	return func(c *gin.Context) {
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		_ = indexTemplate.Execute(c.Writer, options)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>FIR Analysis</title>
<style>
body { font-family: "Segoe UI", system-ui, sans-serif; color: #1f2a36; background: #f4f6f8; margin: 0; }
main { max-width: 560px; margin: 4rem auto; background: #fff; padding: 2.5rem 3rem; border-radius: 8px; box-shadow: 0 1px 4px rgba(31, 42, 54, .12); }
h1 { color: #1f4e79; margin-top: 0; }
fieldset { border: 1px solid #dde2e8; border-radius: 6px; margin: 1.5rem 0; }
legend { font-weight: 600; padding: 0 .4rem; }
label.option { display: block; padding: .2rem 0; }
input[type=file] { margin: 1rem 0; }
button { background: #1f4e79; color: #fff; border: none; border-radius: 6px; padding: .6rem 1.4rem; font-size: 1rem; cursor: pointer; }
button:disabled { opacity: .6; cursor: wait; }
p.error { color: #842029; }
</style>
</head>
<body>
<main>
<h1>FIR Analysis</h1>
<p>Upload a First Information Report (PDF) to generate an investigation analysis.</p>
<form id="upload" method="post" action="/upload" enctype="multipart/form-data">
<input type="file" name="file" accept="application/pdf" required>
<fieldset>
<legend>Sections</legend>
{{- range .}}
<label class="option"><input type="checkbox" name="section" value="{{.ID}}" checked> {{.Title}}</label>
{{- end}}
</fieldset>
<button type="submit">Analyze</button>
<p class="error" id="error" hidden></p>
</form>
<script>
document.getElementById('upload').addEventListener('submit', function (e) {
  e.preventDefault();
  var form = e.target;
  var data = new FormData();
  data.append('file', form.file.files[0]);
  var sections = Array.prototype.slice.call(form.querySelectorAll('input[name=section]:checked'))
    .map(function (el) { return el.value; });
  data.append('sections', JSON.stringify(sections));
  form.querySelector('button').disabled = true;
  fetch('/upload', { method: 'POST', body: data })
    .then(function (r) { return r.json().then(function (body) { return { ok: r.ok, body: body }; }); })
    .then(function (res) {
      if (res.ok && res.body.redirect_url) { location.href = res.body.redirect_url; return; }
      throw new Error(res.body.detail || 'Upload failed');
    })
    .catch(function (err) {
      var el = document.getElementById('error');
      el.textContent = err.message;
      el.hidden = false;
      form.querySelector('button').disabled = false;
    });
});
</script>
</main>
</body>
</html>
`))
