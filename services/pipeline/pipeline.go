// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package pipeline implements the FIR analysis nodes and assembles them
// into executable workflow graphs.
//
// # Description
//
// The pipeline turns an uploaded FIR PDF into the report sections a caller
// requests: structured facts, statute mappings for four Indian acts,
// an investigation plan, an evidence checklist, conduct guidance,
// prosecution weaknesses, an event timeline, a court summary, a draft
// chargesheet, and related historical cases. Each section is produced by
// one or more workflow nodes; Assemble builds a graph containing exactly
// the nodes the requested sections need, plus their dependencies.
//
// Node layout:
//
//	read_pdf → translate → facts → {ndps,bns,bnss,bsa}_mapping
//	        → investigation_plan → evidence_checklist
//	        → {dos_donts, weaknesses}
//	facts → timeline, historical_cases
//	facts + mappings + plan → court_summary, chargesheet
//	everything requested → report
//
// # Thread Safety
//
// A Pipeline is immutable after New and safe for concurrent Assemble
// calls. Node instances are created per graph and run by a single
// executor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/resilience"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/observability"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/retrieval"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/search"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/translator"
)

// Node names. These appear in progress events and logs.
const (
	NodeReadPDF           = "read_pdf"
	NodeTranslate         = "translate"
	NodeFacts             = "facts"
	NodeInvestigationPlan = "investigation_plan"
	NodeEvidenceChecklist = "evidence_checklist"
	NodeDosDonts          = "dos_donts"
	NodeWeaknesses        = "weaknesses"
	NodeTimeline          = "timeline"
	NodeCourtSummary      = "court_summary"
	NodeChargesheet       = "chargesheet"
	NodeHistoricalCases   = "historical_cases"
	NodeReport            = "report"
)

// Acts covered by the statute mapping nodes, in report order.
var Acts = []string{retrieval.ActNDPS, retrieval.ActBNS, retrieval.ActBNSS, retrieval.ActBSA}

// MappingNodeName returns the graph node name for an act's statute
// mapping, e.g. "ndps_mapping".
func MappingNodeName(act string) string {
	return strings.ToLower(act) + "_mapping"
}

// actForMappingNode is the inverse of MappingNodeName.
func actForMappingNode(name string) (string, bool) {
	for _, act := range Acts {
		if MappingNodeName(act) == name {
			return act, true
		}
	}
	return "", false
}

// MappingNodeNames returns the four per-act mapping node names in order.
func MappingNodeNames() []string {
	names := make([]string, len(Acts))
	for i, act := range Acts {
		names[i] = MappingNodeName(act)
	}
	return names
}

// SectionNodes maps a section identifier to the node(s) that produce it,
// or nil for an unknown identifier.
func SectionNodes(section string) []string {
	switch section {
	case datatypes.SectionFacts:
		return []string{NodeFacts}
	case datatypes.SectionStatutes:
		return MappingNodeNames()
	case datatypes.SectionInvestigation:
		return []string{NodeInvestigationPlan}
	case datatypes.SectionEvidence:
		return []string{NodeEvidenceChecklist}
	case datatypes.SectionDosDonts:
		return []string{NodeDosDonts}
	case datatypes.SectionWeaknesses:
		return []string{NodeWeaknesses}
	case datatypes.SectionTimeline:
		return []string{NodeTimeline}
	case datatypes.SectionCourtSummary:
		return []string{NodeCourtSummary}
	case datatypes.SectionChargesheet:
		return []string{NodeChargesheet}
	case datatypes.SectionHistoricalCases:
		return []string{NodeHistoricalCases}
	default:
		return nil
	}
}

// KnownSection reports whether id names a section this pipeline can
// generate.
func KnownSection(id string) bool {
	return SectionNodes(id) != nil
}

// NormalizeSections validates and canonicalizes a requested section list:
// identifiers are trimmed and lowercased, duplicates are dropped, and the
// result follows report order. An empty request means every section.
func NormalizeSections(requested []string) ([]string, error) {
	if len(requested) == 0 {
		out := make([]string, len(datatypes.AllSections))
		copy(out, datatypes.AllSections)
		return out, nil
	}

	want := make(map[string]bool, len(requested))
	for _, raw := range requested {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if !KnownSection(id) {
			return nil, fmt.Errorf("unknown section %q", raw)
		}
		want[id] = true
	}
	if len(want) == 0 {
		out := make([]string, len(datatypes.AllSections))
		copy(out, datatypes.AllSections)
		return out, nil
	}

	out := make([]string, 0, len(want))
	for _, id := range datatypes.AllSections {
		if want[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// Deps carries the external dependencies pipeline nodes call out to.
// LLM is required; the rest degrade gracefully when nil (see the node
// docs for how).
type Deps struct {
	LLM        llm.LLMClient
	Retriever  retrieval.Retriever      // nil: statute/guideline retrieval unavailable
	Translator translator.Translator    // nil: documents assumed English
	Searcher   search.Searcher          // nil: historical case search skipped
	Resilience *resilience.Executor     // nil: calls run without retry
	Filter     extensions.MessageFilter // nil: FIR text reaches prompts unredacted
	Logger     *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// generate runs one LLM call under the resilience policy, recording
// latency and estimated token metrics keyed by op.
func (d Deps) generate(ctx context.Context, op, prompt string, params llm.GenerationParams) (string, error) {
	if d.LLM == nil {
		return "", fmt.Errorf("%s: no LLM backend configured", op)
	}

	var out string
	call := func(ctx context.Context) error {
		resp, err := d.LLM.Generate(ctx, prompt, params)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}

	start := time.Now()
	var err error
	if d.Resilience != nil {
		err = d.Resilience.Execute(ctx, op, call, llmClassifier)
	} else {
		err = call(ctx)
	}
	observability.RecordLLMCall(op, time.Since(start), len(prompt), len(out), err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// generateJSON runs one LLM call in JSON mode and decodes the response
// into T, tolerating code fences and surrounding prose.
func generateJSON[T any](ctx context.Context, d Deps, op, prompt string) (T, error) {
	raw, err := d.generate(ctx, op, prompt, llm.GenerationParams{
		Temperature: ptr(float32(0)),
		JSONMode:    true,
	})
	if err != nil {
		var zero T
		return zero, err
	}
	decoded, err := llm.DecodeJSON[T](raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return decoded, nil
}

// searchStatutes queries the act corpus under the resilience policy.
func (d Deps) searchStatutes(ctx context.Context, query, act string) ([]retrieval.StatuteChunk, error) {
	if d.Retriever == nil {
		return nil, retrieval.ErrRetrievalUnavailable
	}

	var chunks []retrieval.StatuteChunk
	call := func(ctx context.Context) error {
		out, err := d.Retriever.SearchStatutes(ctx, query, act, retrieval.DefaultLimit)
		if err != nil {
			return err
		}
		chunks = out
		return nil
	}

	start := time.Now()
	var err error
	if d.Resilience != nil {
		err = d.Resilience.Execute(ctx, "weaviate.statutes", call, retrievalClassifier)
	} else {
		err = call(ctx)
	}
	observability.RecordRetrieval("statute", time.Since(start), err)
	return chunks, err
}

// searchGuidelines queries the forensic guideline corpus under the
// resilience policy.
func (d Deps) searchGuidelines(ctx context.Context, query string) ([]retrieval.GuidelineChunk, error) {
	if d.Retriever == nil {
		return nil, retrieval.ErrRetrievalUnavailable
	}

	var chunks []retrieval.GuidelineChunk
	call := func(ctx context.Context) error {
		out, err := d.Retriever.SearchGuidelines(ctx, query, retrieval.DefaultLimit)
		if err != nil {
			return err
		}
		chunks = out
		return nil
	}

	start := time.Now()
	var err error
	if d.Resilience != nil {
		err = d.Resilience.Execute(ctx, "weaviate.guidelines", call, retrievalClassifier)
	} else {
		err = call(ctx)
	}
	observability.RecordRetrieval("guideline", time.Since(start), err)
	return chunks, err
}

// webSearch runs one case search under the resilience policy.
func (d Deps) webSearch(ctx context.Context, query string) ([]search.Result, error) {
	if d.Searcher == nil {
		return nil, nil
	}

	var results []search.Result
	call := func(ctx context.Context) error {
		out, err := d.Searcher.Search(ctx, query)
		if err != nil {
			return err
		}
		results = out
		return nil
	}

	start := time.Now()
	var err error
	if d.Resilience != nil {
		err = d.Resilience.Execute(ctx, "tavily.search", call, llmClassifier)
	} else {
		err = call(ctx)
	}
	observability.RecordRetrieval("web_search", time.Since(start), err)
	return results, err
}

// llmClassifier treats everything except context cancellation as
// transient; LLM backends fail mostly with timeouts and 5xx-style errors
// that deserve the full retry budget.
func llmClassifier(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Permanent()
	}
	return resilience.Transient()
}

// retrievalClassifier retries transient vector store failures but treats
// an unconfigured store as permanent so nodes can degrade immediately.
func retrievalClassifier(err error) resilience.ErrorClassification {
	if errors.Is(err, retrieval.ErrRetrievalUnavailable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Permanent()
	}
	return resilience.Transient()
}

func ptr[T any](v T) *T { return &v }
