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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/translator"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// TranslateNode converts the extracted FIR text to English. FIRs are
// routinely filed in Hindi or a regional language; every downstream
// prompt assumes English.
//
// The node is an identity pass when no translator is configured or the
// document is already English (the translator detects before it
// translates).
type TranslateNode struct {
	workflow.BaseNode
	deps Deps
}

// NewTranslateNode builds the translation node.
func NewTranslateNode(deps Deps) *TranslateNode {
	return &TranslateNode{
		BaseNode: workflow.BaseNode{
			NodeName:         NodeTranslate,
			NodeDependencies: []string{NodeReadPDF},
			NodeTimeout:      5 * time.Minute,
		},
		deps: deps,
	}
}

// Execute returns the English text for downstream nodes.
func (n *TranslateNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	doc, err := documentFromInputs(inputs)
	if err != nil {
		return nil, err
	}

	if n.deps.Translator == nil {
		return n.filtered(ctx, Translated{Text: doc.Text})
	}

	var result translator.Result
	call := func(ctx context.Context) error {
		out, err := n.deps.Translator.TranslateToEnglish(ctx, doc.Text)
		if err != nil {
			return err
		}
		result = out
		return nil
	}

	if n.deps.Resilience != nil {
		err = n.deps.Resilience.Execute(ctx, "translate.text", call, llmClassifier)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, translator.ErrTranslatorDisabled) {
			return n.filtered(ctx, Translated{Text: doc.Text})
		}
		return nil, err
	}

	if result.Translated {
		n.deps.logger().Info("translated FIR text",
			slog.String("detected_language", result.DetectedLanguage),
			slog.Int("text_length", len(result.Text)),
		)
	}

	return n.filtered(ctx, Translated{
		Text:             result.Text,
		DetectedLanguage: result.DetectedLanguage,
		Translated:       result.Translated,
	})
}

// filtered runs the configured message filter over the English text, so
// redaction happens once before any prompt or log sees it. A blocked
// document fails the node.
func (n *TranslateNode) filtered(ctx context.Context, out Translated) (any, error) {
	if n.deps.Filter == nil {
		return out, nil
	}
	res, err := n.deps.Filter.FilterInput(ctx, out.Text)
	if err != nil {
		return nil, fmt.Errorf("filter document text: %w", err)
	}
	if res.WasBlocked {
		return nil, fmt.Errorf("%w: %s", extensions.ErrMessageBlocked, res.BlockReason)
	}
	if res.WasModified {
		n.deps.logger().Info("redacted document text before analysis",
			slog.Int("detections", len(res.Detections)),
		)
		out.Text = res.Filtered
	}
	return out, nil
}
