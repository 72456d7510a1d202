// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package retrieval

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
)

var (
	CHUNK_SIZE    = 1000
	CHUNK_OVERLAP = int(float64(CHUNK_SIZE) * 0.10) // Chunk_overlap is 10% of the CHUNK_SIZE
)

const (
	// maxCorpusLine caps a single JSONL line. Statute chunks are around a
	// thousand characters; anything near this limit is a corpus bug.
	maxCorpusLine = 1 << 20

	// ingestBatchSize bounds how many chunks are embedded and flushed to
	// Weaviate per round trip. Embedding APIs cap batch sizes well below
	// a full act's corpus.
	ingestBatchSize = 128
)

// StatuteRecord is one line of a statute corpus JSONL file.
type StatuteRecord struct {
	Act            string `json:"act"`
	SectionNumber  string `json:"section_number"`
	Subsection     string `json:"subsection,omitempty"`
	Chapter        string `json:"chapter,omitempty"`
	ChapterHeading string `json:"chapter_heading,omitempty"`
	Content        string `json:"content"`
	PageNumber     int    `json:"page_number,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
	PDFName        string `json:"pdf_name,omitempty"`
}

// GuidelineRecord is one line of a forensic guideline corpus JSONL file.
type GuidelineRecord struct {
	Chapter      string   `json:"chapter,omitempty"`
	ChapterTitle string   `json:"chapter_title,omitempty"`
	Headings     []string `json:"headings,omitempty"`
	Content      string   `json:"content"`
	PageNumber   int      `json:"page_number,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	PDFName      string   `json:"pdf_name,omitempty"`
}

// Ingestor writes corpus chunks into Weaviate with client-side vectors.
type Ingestor struct {
	client   *weaviate.Client
	embedder llm.Embedder
	splitter textsplitter.TextSplitter
}

// NewIngestor creates an ingestor over the given client and embedder. The
// embedder must be the one the retriever will query with.
func NewIngestor(client *weaviate.Client, embedder llm.Embedder) *Ingestor {
	return &Ingestor{
		client:   client,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(CHUNK_SIZE),
			textsplitter.WithChunkOverlap(CHUNK_OVERLAP),
		),
	}
}

// ReadStatuteJSONL parses one StatuteRecord per line. Blank lines are
// skipped; a malformed line aborts with its line number so corpus problems
// surface at ingest time rather than at query time.
func ReadStatuteJSONL(r io.Reader) ([]StatuteRecord, error) {
	var records []StatuteRecord
	err := eachLine(r, func(line int, text string) error {
		var rec StatuteRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Content) == "" {
			return fmt.Errorf("line %d: missing content", line)
		}
		if rec.Act == "" {
			return fmt.Errorf("line %d: missing act label", line)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadGuidelineJSONL parses one GuidelineRecord per line with the same
// contract as ReadStatuteJSONL.
func ReadGuidelineJSONL(r io.Reader) ([]GuidelineRecord, error) {
	var records []GuidelineRecord
	err := eachLine(r, func(line int, text string) error {
		var rec GuidelineRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Content) == "" {
			return fmt.Errorf("line %d: missing content", line)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func eachLine(r io.Reader, fn func(line int, text string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCorpusLine)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := fn(line, text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read corpus: %w", err)
	}
	return nil
}

// IngestStatutes splits, embeds, and stores statute records.
//
// Oversized records are split with the recursive character splitter so no
// chunk exceeds CHUNK_SIZE. Object IDs are derived from act, section, and
// chunk content, so re-running ingestion over the same corpus updates
// objects in place instead of duplicating them.
//
// Returns the number of chunks Weaviate reported as stored.
func (in *Ingestor) IngestStatutes(ctx context.Context, records []StatuteRecord) (int, error) {
	if in.client == nil {
		return 0, ErrRetrievalUnavailable
	}

	type part struct {
		record  StatuteRecord
		content string
	}
	var parts []part
	for _, rec := range records {
		pieces, err := in.splitContent(rec.Content)
		if err != nil {
			return 0, fmt.Errorf("failed to split %s section %s: %w", rec.Act, rec.SectionNumber, err)
		}
		for _, piece := range pieces {
			parts = append(parts, part{record: rec, content: piece})
		}
	}
	if len(parts) == 0 {
		slog.Warn("No statute content to ingest")
		return 0, nil
	}

	created := 0
	for start := 0; start < len(parts); start += ingestBatchSize {
		end := min(start+ingestBatchSize, len(parts))
		batch := parts[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.content
		}
		vectors, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return created, fmt.Errorf("failed to embed statute chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return created, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		objects := make([]*models.Object, len(batch))
		for i, p := range batch {
			objects[i] = &models.Object{
				Class:  "StatuteSection",
				ID:     deterministicID(p.record.Act, p.record.SectionNumber, p.content),
				Vector: vectors[i],
				Properties: map[string]interface{}{
					"act":             p.record.Act,
					"section_number":  p.record.SectionNumber,
					"subsection":      p.record.Subsection,
					"chapter":         p.record.Chapter,
					"chapter_heading": p.record.ChapterHeading,
					"content":         p.content,
					"page_number":     p.record.PageNumber,
					"source_url":      p.record.SourceURL,
					"pdf_name":        p.record.PDFName,
				},
			}
		}

		n, err := in.flush(ctx, objects)
		created += n
		if err != nil {
			return created, err
		}
	}

	slog.Info("Ingested statute corpus", "records", len(records), "chunks_stored", created)
	return created, nil
}

// IngestGuidelines splits, embeds, and stores forensic guideline records.
func (in *Ingestor) IngestGuidelines(ctx context.Context, records []GuidelineRecord) (int, error) {
	if in.client == nil {
		return 0, ErrRetrievalUnavailable
	}

	type part struct {
		record  GuidelineRecord
		content string
	}
	var parts []part
	for _, rec := range records {
		pieces, err := in.splitContent(rec.Content)
		if err != nil {
			return 0, fmt.Errorf("failed to split guideline chapter %s: %w", rec.Chapter, err)
		}
		for _, piece := range pieces {
			parts = append(parts, part{record: rec, content: piece})
		}
	}
	if len(parts) == 0 {
		slog.Warn("No guideline content to ingest")
		return 0, nil
	}

	created := 0
	for start := 0; start < len(parts); start += ingestBatchSize {
		end := min(start+ingestBatchSize, len(parts))
		batch := parts[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.content
		}
		vectors, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return created, fmt.Errorf("failed to embed guideline chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return created, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		objects := make([]*models.Object, len(batch))
		for i, p := range batch {
			headings := p.record.Headings
			if headings == nil {
				headings = []string{}
			}
			objects[i] = &models.Object{
				Class:  "ForensicGuideline",
				ID:     deterministicID(p.record.PDFName, p.record.Chapter, p.content),
				Vector: vectors[i],
				Properties: map[string]interface{}{
					"chapter":       p.record.Chapter,
					"chapter_title": p.record.ChapterTitle,
					"headings":      headings,
					"content":       p.content,
					"page_number":   p.record.PageNumber,
					"source_url":    p.record.SourceURL,
					"pdf_name":      p.record.PDFName,
				},
			}
		}

		n, err := in.flush(ctx, objects)
		created += n
		if err != nil {
			return created, err
		}
	}

	slog.Info("Ingested guideline corpus", "records", len(records), "chunks_stored", created)
	return created, nil
}

// IngestStatuteFile loads a JSONL corpus file and ingests it.
func (in *Ingestor) IngestStatuteFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	records, err := ReadStatuteJSONL(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	slog.Info("Loaded statute corpus file", "file", filepath.Base(path), "records", len(records))
	return in.IngestStatutes(ctx, records)
}

// IngestGuidelineFile loads a JSONL guideline file and ingests it.
func (in *Ingestor) IngestGuidelineFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	records, err := ReadGuidelineJSONL(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	slog.Info("Loaded guideline corpus file", "file", filepath.Base(path), "records", len(records))
	return in.IngestGuidelines(ctx, records)
}

func (in *Ingestor) splitContent(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	if len(content) <= CHUNK_SIZE {
		return []string{content}, nil
	}
	return in.splitter.SplitText(content)
}

// deterministicID derives a stable object ID from the identifying fields of
// a chunk, so re-ingesting the same corpus overwrites rather than appends.
func deterministicID(keys ...string) strfmt.UUID {
	hash := sha256.Sum256([]byte(strings.Join(keys, "\x00")))
	id, _ := uuid.FromBytes(hash[:16])
	return strfmt.UUID(id.String())
}

func (in *Ingestor) flush(ctx context.Context, objects []*models.Object) (int, error) {
	resp, err := in.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		slog.Error("Failed to perform batch import to Weaviate", "error", err)
		return 0, fmt.Errorf("failed to save objects to Weaviate: %w", err)
	}

	created := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			created++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in Weaviate batch item", "class", item.Class, "error", errItem.Message)
			}
		} else {
			slog.Warn("Failed Weaviate batch item, no error provided", "class", item.Class)
		}
	}
	if created < len(objects) {
		slog.Warn("Errors encountered during Weaviate batch import",
			"successful_chunks", created, "total", len(objects))
	}
	return created, nil
}
