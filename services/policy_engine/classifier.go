// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package policy_engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/extensions"
)

// Classifier adapts the policy engine to the extensions.DataClassifier
// seam so the orchestrator can swap classification backends without
// touching the pipeline.
type Classifier struct {
	engine *PolicyEngine
}

func NewClassifier(engine *PolicyEngine) *Classifier {
	return &Classifier{engine: engine}
}

// Classify scans the content and reports the most sensitive classification
// found. Finding snippets are redacted; the raw matches stay inside the
// engine's ScanContent output.
func (c *Classifier) Classify(_ context.Context, content string) (*extensions.ClassificationResult, error) {
	findings := c.engine.ScanContent(content)

	result := &extensions.ClassificationResult{
		HighestLevel: extensions.ClassificationPublic,
		IsClean:      len(findings) == 0,
	}
	for _, f := range findings {
		level := classificationLevel(f.ClassificationName)
		if classificationRank(level) > classificationRank(result.HighestLevel) {
			result.HighestLevel = level
		}
		result.Findings = append(result.Findings, extensions.ClassificationFinding{
			Classification: level,
			Type:           strings.ToLower(f.PatternId),
			Location:       fmt.Sprintf("line %d", f.LineNumber),
			Pattern:        f.PatternId,
			Snippet:        redactSnippet(f.MatchedContent),
		})
	}
	return result, nil
}

// ClassifyBatch classifies each item in order.
func (c *Classifier) ClassifyBatch(ctx context.Context, contents []string) ([]*extensions.ClassificationResult, error) {
	results := make([]*extensions.ClassificationResult, len(contents))
	for i, content := range contents {
		r, err := c.Classify(ctx, content)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

func classificationLevel(name string) extensions.DataClassification {
	switch name {
	case "secret":
		return extensions.ClassificationSecret
	case "pii":
		return extensions.ClassificationPII
	case "confidential":
		return extensions.ClassificationConfidential
	default:
		return extensions.ClassificationPublic
	}
}

func classificationRank(level extensions.DataClassification) int {
	switch level {
	case extensions.ClassificationSecret:
		return 3
	case extensions.ClassificationPII:
		return 2
	case extensions.ClassificationConfidential:
		return 1
	default:
		return 0
	}
}

// redactSnippet keeps just enough of a match to recognize it in an audit
// trail without reproducing the identifier.
func redactSnippet(match string) string {
	runes := []rune(match)
	if len(runes) <= 4 {
		return "****"
	}
	return string(runes[:2]) + "..." + string(runes[len(runes)-2:])
}

var _ extensions.DataClassifier = (*Classifier)(nil)
