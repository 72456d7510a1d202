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
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// Upload is the workflow input delivered to root nodes under
// workflow.RootInputKey.
type Upload struct {
	Filename string
	Data     []byte
}

// Document is the read_pdf node output: page-extracted FIR text plus the
// metadata the results API reports. Text is sensitive and is stripped
// from anything persisted; only Meta survives into stored results.
type Document struct {
	Meta datatypes.DocumentMeta
	Text string
}

// Translated is the translate node output.
type Translated struct {
	Text             string
	DetectedLanguage string
	Translated       bool

	// FromFacts marks text reconstructed from the stored facts payload
	// during section extension, after the original document text was
	// discarded. Prompts treat it the same; it is never verbatim FIR text.
	FromFacts bool
}

// ---------------------------------------------------------------------------
// Input extraction helpers. Node Execute methods receive dependency
// outputs as map[string]any; these helpers do the assertions once.
// ---------------------------------------------------------------------------

func uploadFromInputs(inputs map[string]any) (Upload, error) {
	raw, ok := inputs[workflow.RootInputKey]
	if !ok {
		return Upload{}, fmt.Errorf("missing workflow input")
	}
	up, ok := raw.(Upload)
	if !ok {
		return Upload{}, fmt.Errorf("workflow input has unexpected type %T", raw)
	}
	return up, nil
}

func documentFromInputs(inputs map[string]any) (Document, error) {
	raw, ok := inputs[NodeReadPDF]
	if !ok {
		return Document{}, fmt.Errorf("missing %s output", NodeReadPDF)
	}
	doc, ok := raw.(Document)
	if !ok {
		return Document{}, fmt.Errorf("%s output has unexpected type %T", NodeReadPDF, raw)
	}
	return doc, nil
}

func translatedFromInputs(inputs map[string]any) (Translated, error) {
	raw, ok := inputs[NodeTranslate]
	if !ok {
		return Translated{}, fmt.Errorf("missing %s output", NodeTranslate)
	}
	tr, ok := raw.(Translated)
	if !ok {
		return Translated{}, fmt.Errorf("%s output has unexpected type %T", NodeTranslate, raw)
	}
	return tr, nil
}

// firText returns the English FIR text dependents prompt over.
func firText(inputs map[string]any) (string, error) {
	tr, err := translatedFromInputs(inputs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tr.Text) == "" {
		return "", fmt.Errorf("empty document text")
	}
	return tr.Text, nil
}

func factsFromInputs(inputs map[string]any) (datatypes.FIRFacts, error) {
	raw, ok := inputs[NodeFacts]
	if !ok {
		return datatypes.FIRFacts{}, fmt.Errorf("missing %s output", NodeFacts)
	}
	facts, ok := raw.(datatypes.FIRFacts)
	if !ok {
		return datatypes.FIRFacts{}, fmt.Errorf("%s output has unexpected type %T", NodeFacts, raw)
	}
	return facts, nil
}

// mappingsFromInputs collects the per-act mapping outputs present in
// inputs, in act order. Missing acts are skipped so callers work for
// graphs that include any subset of mapping nodes.
func mappingsFromInputs(inputs map[string]any) []datatypes.ActMapping {
	var out []datatypes.ActMapping
	for _, act := range Acts {
		raw, ok := inputs[MappingNodeName(act)]
		if !ok {
			continue
		}
		if m, ok := raw.(datatypes.ActMapping); ok {
			out = append(out, m)
		}
	}
	return out
}

func planFromInputs(inputs map[string]any) (datatypes.InvestigationPlan, bool) {
	raw, ok := inputs[NodeInvestigationPlan]
	if !ok {
		return datatypes.InvestigationPlan{}, false
	}
	plan, ok := raw.(datatypes.InvestigationPlan)
	return plan, ok
}

func checklistFromInputs(inputs map[string]any) ([]string, bool) {
	raw, ok := inputs[NodeEvidenceChecklist]
	if !ok {
		return nil, false
	}
	items, ok := raw.([]string)
	return items, ok
}
