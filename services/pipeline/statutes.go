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
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/retrieval"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

const (
	// maxMappingPoints caps the factual points extracted per act.
	maxMappingPoints = 10

	// mappingParallelism bounds concurrent per-point mapping round trips.
	mappingParallelism = 4
)

// StatuteMappingNode maps FIR facts onto one act's statutory sections.
//
// # Description
//
// Two-step retrieval-augmented mapping:
//
//  1. The LLM lists at most ten factual points from the FIR text, with
//     no legal interpretation.
//  2. For each point, the act corpus is queried (k=5) and the LLM selects
//     only the retrieved sections the point directly supports, citing the
//     retrieved text.
//
// Results are flattened across points, grouped by section number, and
// duplicate groups are merged by a third LLM pass so each section appears
// once with combined reasoning.
//
// When the statute corpus is unavailable the node degrades: it returns an
// ActMapping with no sections and an explanatory note instead of failing
// the workflow.
type StatuteMappingNode struct {
	workflow.BaseNode
	deps Deps
	act  string
}

// NewStatuteMappingNode builds the mapping node for one act
// (retrieval.ActNDPS, ActBNS, ActBNSS, or ActBSA).
func NewStatuteMappingNode(deps Deps, act string) *StatuteMappingNode {
	return &StatuteMappingNode{
		BaseNode: workflow.BaseNode{
			NodeName: MappingNodeName(act),
			// The facts dependency sequences mapping after fact
			// extraction; the prompts consume the translated text.
			NodeDependencies: []string{NodeTranslate, NodeFacts},
			NodeTimeout:      15 * time.Minute,
		},
		deps: deps,
		act:  act,
	}
}

const extractPointsPrompt = `You are an expert in Indian criminal law, specifically the %s.

Task: Extract only factual points from the FIR text below.

Rules:
- Extract MAXIMUM 10 high-quality factual points.
- Prioritize the most legally significant and relevant facts.
- Use only facts that are explicitly written in the FIR.
- Do not infer, assume, interpret, or add anything.
- Do not mention any section numbers.
- Extract only facts relevant to this act (acts, substances, quantities, locations, actions, procedures).
- Each point must be a separate, clear, high-quality factual statement.
- Focus on facts that are most relevant for legal charging and prosecution.
- If something is not written in the FIR, do not include it.
- Quality over quantity - select only the most important and legally significant points.

FIR Text:
%s

Return a JSON object: {"points_to_be_charged": ["point 1", "point 2", ...]}`

const mapSectionsPrompt = `You are an expert in the %s.

Legal Point (from FIR):
%s

Retrieved Act Text:
%s

Task:
Identify only the sections that are directly applicable to the legal point from the FIR.

CRITICAL RULES:
1. Use ONLY the retrieved act text above. Do not add external knowledge, legal interpretations, or assumptions.
2. Each section must be clearly supported by the retrieved text.
3. The legal point must directly match facts that the section addresses according to the retrieved text.
4. You are NOT required to use all retrieved sections - select only what is important and relevant to the legal point.
5. If a section is not clearly and directly applicable based on the retrieved text, exclude it.
6. Prefer fewer accurate sections over many weak ones.
7. Do NOT interpret or infer connections - use only what is explicitly stated in the retrieved act text.

For each included section, return:

- section_number:
  Must match exactly as shown in retrieved text (e.g. "Section 1 (1)", "Section 20", including sub-clauses like 20(b-ii)(B), 29(1), etc.)
  Format: Include subsection if shown (e.g. "Section 20 (1)" or "Section 20").

- section_description:
  Describe what the section states using ONLY the retrieved Legal Text above.
  Do not add interpretations or external knowledge.
  Base this description solely on the exact words from the retrieved text.

- why_section_is_relevant:
  Explain how the legal point from the FIR relates to this section, based ONLY on what the retrieved Legal Text states.
  Reference specific facts from the legal point that align with what the section text describes.
  Do not make assumptions or interpretations beyond what is explicitly stated.

- source:
  Format: "Page X, Document: [pdf_name], Source URL: [source_url]"
  Use the exact values from "Source:", "Document:", and "Source URL:" fields above.

If no section from the retrieved text directly applies to the legal point, return an empty list.
Return a JSON object: {"sections": [{"section_number": "...", "section_description": "...", "why_section_is_relevant": "...", "source": "..."}]}`

const mergeSectionsPrompt = `You are an expert in the %s. You need to merge duplicate entries for the same section number.

Section Number: %s

Duplicate Entries:
%s

Task:
Merge these duplicate entries into a single, comprehensive entry that:
1. Combines the best information from all duplicates
2. Creates a clear, comprehensive section_description using information from all duplicates
3. Creates a comprehensive why_section_is_relevant that combines all relevant points
4. Uses the most appropriate source (or combines sources if needed)

Rules:
- Use the section_number exactly: %s
- Combine information from all duplicates - do not lose important details
- Ensure the merged entry is more comprehensive than any single duplicate
- For source, use the format: "Page X, Document: [pdf_name], Source URL: [source_url]" from the most relevant duplicate, or combine if they differ
- Maintain accuracy - only use information that is present in the duplicates

Return a JSON object: {"section_number": "...", "section_description": "...", "why_section_is_relevant": "...", "source": "..."}`

type pointsResponse struct {
	PointsToBeCharged []string `json:"points_to_be_charged"`
}

type sectionsResponse struct {
	Sections []datatypes.StatuteEntry `json:"sections"`
}

// Execute runs the two-step mapping for this node's act.
func (n *StatuteMappingNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	text, err := firText(inputs)
	if err != nil {
		return nil, err
	}

	title := retrieval.ActTitles[n.act]
	mapping := datatypes.ActMapping{Act: n.act, ActTitle: title, Sections: []datatypes.StatuteEntry{}}

	if n.deps.Retriever == nil {
		mapping.Note = "statute corpus unavailable: vector store not configured"
		n.deps.logger().Warn("statute mapping degraded", slog.String("act", n.act), slog.String("reason", mapping.Note))
		return mapping, nil
	}

	points, err := n.extractPoints(ctx, title, text)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		mapping.Note = "no chargeable factual points found in the FIR"
		return mapping, nil
	}

	entries, degraded, err := n.mapPoints(ctx, title, points)
	if err != nil {
		return nil, err
	}
	if degraded {
		mapping.Note = "statute corpus unavailable: vector store not configured"
		return mapping, nil
	}

	merged, err := n.mergeDuplicates(ctx, title, entries)
	if err != nil {
		return nil, err
	}
	mapping.Sections = merged

	n.deps.logger().Info("statute mapping complete",
		slog.String("act", n.act),
		slog.Int("points", len(points)),
		slog.Int("sections_raw", len(entries)),
		slog.Int("sections", len(merged)),
	)

	return mapping, nil
}

func (n *StatuteMappingNode) extractPoints(ctx context.Context, title, text string) ([]string, error) {
	op := strings.ToLower(n.act) + ".points"
	resp, err := generateJSON[pointsResponse](ctx, n.deps, op,
		fmt.Sprintf(extractPointsPrompt, title, text))
	if err != nil {
		return nil, err
	}

	points := resp.PointsToBeCharged
	if len(points) > maxMappingPoints {
		points = points[:maxMappingPoints]
	}
	return points, nil
}

// mapPoints runs the per-point retrieval and mapping with bounded
// parallelism. degraded is true when the corpus turned out to be
// unavailable mid-run.
func (n *StatuteMappingNode) mapPoints(ctx context.Context, title string, points []string) ([]datatypes.StatuteEntry, bool, error) {
	results := make([][]datatypes.StatuteEntry, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mappingParallelism)
	for i, point := range points {
		g.Go(func() error {
			entries, err := n.mapPoint(gctx, title, point)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, retrieval.ErrRetrievalUnavailable) {
			return nil, true, nil
		}
		return nil, false, err
	}

	var flattened []datatypes.StatuteEntry
	for _, entries := range results {
		flattened = append(flattened, entries...)
	}
	return flattened, false, nil
}

func (n *StatuteMappingNode) mapPoint(ctx context.Context, title, point string) ([]datatypes.StatuteEntry, error) {
	chunks, err := n.deps.searchStatutes(ctx, point, n.act)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	op := strings.ToLower(n.act) + ".map"
	resp, err := generateJSON[sectionsResponse](ctx, n.deps, op,
		fmt.Sprintf(mapSectionsPrompt, title, point, formatStatuteChunks(chunks)))
	if err != nil {
		return nil, err
	}
	return resp.Sections, nil
}

// mergeDuplicates groups entries by section number (first-seen order) and
// merges groups with more than one entry through the LLM.
func (n *StatuteMappingNode) mergeDuplicates(ctx context.Context, title string, entries []datatypes.StatuteEntry) ([]datatypes.StatuteEntry, error) {
	var order []string
	groups := make(map[string][]datatypes.StatuteEntry)
	for _, e := range entries {
		key := e.SectionNumber
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	merged := make([]datatypes.StatuteEntry, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}

		op := strings.ToLower(n.act) + ".merge"
		entry, err := generateJSON[datatypes.StatuteEntry](ctx, n.deps, op,
			fmt.Sprintf(mergeSectionsPrompt, title, key, formatDuplicateEntries(group), key))
		if err != nil {
			return nil, err
		}
		entry.SectionNumber = key
		merged = append(merged, entry)
	}
	return merged, nil
}

// formatStatuteChunks renders retrieved chunks for the mapping prompt.
func formatStatuteChunks(chunks []retrieval.StatuteChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		sectionNum := c.SectionNumber
		if c.Subsection != "" {
			sectionNum += " " + c.Subsection
		}
		fmt.Fprintf(&b, "%s\n", sectionNum)
		fmt.Fprintf(&b, "Chapter: %s - %s\n", c.Chapter, c.ChapterHeading)
		fmt.Fprintf(&b, "Source: Page %d, Chunk %d\n", c.PageNumber, i+1)
		if c.SourceURL != "" {
			fmt.Fprintf(&b, "Source URL: %s\n", c.SourceURL)
		}
		fmt.Fprintf(&b, "Document: %s\n", c.PDFName)
		fmt.Fprintf(&b, "Legal Text:\n%s\n", c.Content)
		b.WriteString(strings.Repeat("-", 80) + "\n")
	}
	return b.String()
}

// formatDuplicateEntries renders a duplicate group for the merge prompt.
func formatDuplicateEntries(group []datatypes.StatuteEntry) string {
	var b strings.Builder
	for i, e := range group {
		fmt.Fprintf(&b, "\n--- Duplicate %d ---\n", i+1)
		fmt.Fprintf(&b, "Section Description: %s\n", e.SectionDescription)
		fmt.Fprintf(&b, "Why Section is Relevant: %s\n", e.WhySectionIsRelevant)
		fmt.Fprintf(&b, "Source: %s\n", e.Source)
	}
	return b.String()
}
