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
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/store"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/pipeline"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDeps wires handlers over a memory store and a mock LLM. No
// vector store, translator, or metrics.
func newTestDeps(t *testing.T, mock llm.LLMClient) *Deps {
	t.Helper()

	logger := testLogger()
	st := store.NewMemoryStore(time.Hour, logger)
	t.Cleanup(func() { _ = st.Close() })

	p := pipeline.New(pipeline.Deps{LLM: mock, Logger: logger})
	hub := NewHub()
	runner := NewRunner(st, p, hub, nil, nil, logger)

	return &Deps{
		Store:      st,
		Pipeline:   p,
		Runner:     runner,
		Hub:        hub,
		Logger:     logger,
		LLMBackend: "mock",
	}
}

func newTestRouter(deps *Deps) *gin.Engine {
	r := gin.New()
	r.GET("/", HandleIndex())
	r.GET("/health", HandleHealth(deps))
	r.POST("/upload", HandleUpload(deps))
	r.GET("/results/:workflow_id", HandleResultsPage(deps))
	r.GET("/api/results/:workflow_id", HandleResultsAPI(deps))
	r.GET("/api/document/:workflow_id", HandleDocument(deps))
	r.POST("/api/sections/:workflow_id", HandleSections(deps))
	r.GET("/api/progress/:workflow_id", HandleProgress(deps))
	r.POST("/api/corpus/ingest", HandleCorpusIngest(deps))
	return r
}

// multipartBody builds an upload request body with a file part and an
// optional sections field.
func multipartBody(t *testing.T, filename string, content []byte, sections string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if sections != "" {
		require.NoError(t, mw.WriteField("sections", sections))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// seedCompleted stores a finished workflow with a facts payload.
func seedCompleted(t *testing.T, deps *Deps, id string) {
	t.Helper()

	rec := &store.Record{
		WorkflowID: id,
		Status:     store.StatusCompleted,
		Sections:   []string{datatypes.SectionFacts},
		Meta: datatypes.DocumentMeta{
			Filename:  "fir_127_2025.pdf",
			SizeBytes: 4096,
		},
		CreatedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, rec.SetPayload(datatypes.SectionFacts, datatypes.FIRFacts{
		FIRNumber:      "127/2025",
		PoliceStation:  "Sadar Bazar",
		OffenceSummary: "Recovery of contraband during a vehicle check.",
	}))
	require.NoError(t, deps.Store.Put(t.Context(), rec))
}

// seedFailed stores a workflow that died mid-run.
func seedFailed(t *testing.T, deps *Deps, id, errMsg string) {
	t.Helper()
	require.NoError(t, deps.Store.Put(t.Context(), &store.Record{
		WorkflowID:  id,
		Status:      store.StatusFailed,
		Error:       errMsg,
		Sections:    []string{datatypes.SectionFacts},
		CreatedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}))
}

func seedRunning(t *testing.T, deps *Deps, id string) {
	t.Helper()
	require.NoError(t, deps.Store.Put(t.Context(), &store.Record{
		WorkflowID: id,
		Status:     store.StatusRunning,
		Sections:   []string{datatypes.SectionFacts},
		CreatedAt:  time.Now().UTC(),
	}))
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["weaviate"])
	assert.Equal(t, "mock", body["llm_backend"])
}

func TestIndexServesUploadForm(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/upload"`)
	for _, id := range datatypes.AllSections {
		assert.Contains(t, w.Body.String(), `value="`+id+`"`)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	body, contentType := multipartBody(t, "notes.txt", []byte("plain text"), "")
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only PDF files are allowed", decodeJSON(t, w)["detail"])
}

func TestUploadRejectsMissingFile(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sections", "facts"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRejectsUnknownSection(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	body, contentType := multipartBody(t, "fir.pdf", []byte("%PDF-1.4"), `["facts","bogus"]`)
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeJSON(t, w)["detail"], "unknown section")
}

func TestUploadStartsWorkflow(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	// Not a parseable PDF; the workflow is expected to fail at read_pdf,
	// asynchronously, after the upload has already been accepted.
	body, contentType := multipartBody(t, "fir_127_2025.pdf", []byte("%PDF-1.4 garbage"), `["facts"]`)
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON(t, w)
	assert.Equal(t, true, resp["success"])
	workflowID, _ := resp["workflow_id"].(string)
	require.NotEmpty(t, workflowID)
	assert.Equal(t, "/results/"+workflowID, resp["redirect_url"])

	deps.Runner.Wait()

	rec, err := deps.Store.Get(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)
	assert.Equal(t, "fir_127_2025.pdf", rec.Meta.Filename)
}

func TestResultsAPIUnknown(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/results/nope", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Workflow result not found", decodeJSON(t, w)["detail"])
}

func TestResultsAPICompleted(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-done")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/results/wf-done", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "wf-done", body["workflow_id"])
	assert.Equal(t, store.StatusCompleted, body["status"])

	results, ok := body["results"].(map[string]any)
	require.True(t, ok)
	facts, ok := results[datatypes.SectionFacts].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "127/2025", facts["fir_number"])
}

func TestResultsPageUnknown(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/results/nope", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Workflow not found")
}

func TestResultsPageCompleted(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-page")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/results/wf-page", nil))

	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, html, "fir_127_2025.pdf")
	assert.Contains(t, html, "127/2025")
	assert.Contains(t, html, "completed")
}

func TestDocumentUnknown(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/document/nope", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Workflow result not found", decodeJSON(t, w)["detail"])
}

func TestDocumentStillRunning(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedRunning(t, deps, "wf-running")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/document/wf-running", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Workflow still running", decodeJSON(t, w)["detail"])
}

// TestDocumentFailedWorkflow verifies there is no report download for a
// failed run: the API answers 409 and names the failure.
func TestDocumentFailedWorkflow(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedFailed(t, deps, "wf-dead", "read_pdf: malformed document")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/document/wf-dead", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	msg, _ := decodeJSON(t, w)["detail"].(string)
	assert.Contains(t, msg, "Workflow failed")
	assert.Contains(t, msg, "read_pdf: malformed document")
}

func TestDocumentRebuiltFromPayloads(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-doc")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/document/wf-doc", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "fir_127_2025_analysis")
	assert.Contains(t, w.Body.String(), "127/2025")
}

func TestSectionsWhileRunning(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedRunning(t, deps, "wf-busy")

	req := httptest.NewRequest("POST", "/api/sections/wf-busy",
		strings.NewReader(`{"sections":["timeline"]}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Workflow still running", decodeJSON(t, w)["detail"])
}

func TestSectionsAlreadyPresent(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-have")

	req := httptest.NewRequest("POST", "/api/sections/wf-have",
		strings.NewReader(`{"sections":["facts"]}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeJSON(t, w)["success"])

	// Nothing to generate; record stays completed.
	rec, err := deps.Store.Get(t.Context(), "wf-have")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
}

// TestSectionsRejectsTamperedState seeds a completed workflow whose
// stored state seal no longer matches and verifies the extension request
// is refused instead of building on altered payloads.
func TestSectionsRejectsTamperedState(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-tamper")

	state := workflow.NewState("wf-tamper")
	state.SetCompleted(pipeline.NodeFacts, datatypes.FIRFacts{FIRNumber: "127/2025"})
	snap, err := workflow.MarshalSnapshot(state, pipeline.GraphName)
	require.NoError(t, err)

	// Alter the sealed state without recomputing the checksum.
	tampered := bytes.Replace(snap, []byte(`"run_id":"wf-tamper"`), []byte(`"run_id":"wf-edited"`), 1)
	require.NotEqual(t, snap, tampered)
	require.NoError(t, deps.Store.Update(t.Context(), "wf-tamper", func(r *store.Record) error {
		r.Snapshot = tampered
		return nil
	}))

	req := httptest.NewRequest("POST", "/api/sections/wf-tamper",
		strings.NewReader(`{"sections":["timeline"]}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Stored workflow state failed integrity verification", decodeJSON(t, w)["detail"])
}

// TestSectionsAcceptsSealedState is the counterpart: an intact seal lets
// the extension proceed.
func TestSectionsAcceptsSealedState(t *testing.T) {
	mock := llm.NewMockClient().WithResponseFunc(func(string, llm.GenerationParams) (string, error) {
		return `{"timeline": [{"when": "2025-03-01", "event": "Checkpoint stop"}]}`, nil
	})
	deps := newTestDeps(t, mock)
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-sealed")

	state := workflow.NewState("wf-sealed")
	state.SetCompleted(pipeline.NodeFacts, datatypes.FIRFacts{FIRNumber: "127/2025"})
	snap, err := workflow.MarshalSnapshot(state, pipeline.GraphName)
	require.NoError(t, err)
	require.NoError(t, deps.Store.Update(t.Context(), "wf-sealed", func(r *store.Record) error {
		r.Snapshot = snap
		return nil
	}))

	req := httptest.NewRequest("POST", "/api/sections/wf-sealed",
		strings.NewReader(`{"sections":["timeline"]}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	deps.Runner.Wait()
	rec, err := deps.Store.Get(t.Context(), "wf-sealed")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.True(t, rec.HasSection(datatypes.SectionTimeline))
}

func TestSectionsMissingBody(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)
	seedCompleted(t, deps, "wf-nobody")

	req := httptest.NewRequest("POST", "/api/sections/wf-nobody", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorpusIngestUnavailable(t *testing.T) {
	deps := newTestDeps(t, llm.NewMockClient())
	router := newTestRouter(deps)

	req := httptest.NewRequest("POST", "/api/corpus/ingest",
		strings.NewReader(`{"act":"NDPS","section_number":"8","content":"prohibition"}`))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "vector store not configured", decodeJSON(t, w)["detail"])
}

func TestParseSectionsField(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"empty means all", "", datatypes.AllSections, false},
		{"json array", `["timeline","facts"]`, []string{datatypes.SectionFacts, datatypes.SectionTimeline}, false},
		{"comma list", "facts, timeline", []string{datatypes.SectionFacts, datatypes.SectionTimeline}, false},
		{"unknown id", "nonsense", nil, true},
		{"malformed json", `["facts"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSectionsField(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
