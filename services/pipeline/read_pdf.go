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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/datatypes"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/orchestrator/secure"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/workflow"
)

// ReadPDFNode extracts the FIR text from the uploaded PDF.
//
// # Description
//
// Pages are extracted in order and accumulated in an mlocked buffer (see
// the secure package) so the document text never sits in swappable memory
// during extraction. The node rejects encrypted documents and documents
// with no extractable text (scanned image PDFs), and records the SHA-256
// fingerprint the results API reports.
type ReadPDFNode struct {
	workflow.BaseNode
	deps Deps
}

// NewReadPDFNode builds the extraction node.
func NewReadPDFNode(deps Deps) *ReadPDFNode {
	return &ReadPDFNode{
		BaseNode: workflow.BaseNode{
			NodeName:    NodeReadPDF,
			NodeTimeout: 2 * time.Minute,
		},
		deps: deps,
	}
}

// Execute parses the PDF and returns a Document.
func (n *ReadPDFNode) Execute(ctx context.Context, inputs map[string]any) (any, error) {
	up, err := uploadFromInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("uploaded file is empty")
	}

	reader, err := openPDF(up.Data)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, fmt.Errorf("PDF is encrypted; upload a decrypted copy")
		}
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	acc, err := secure.NewTextAccumulator()
	if err != nil {
		return nil, fmt.Errorf("secure text buffer unavailable: %w", err)
	}
	defer acc.Destroy()

	pages := reader.NumPage()
	extracted := 0
	for i := 1; i <= pages; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		text, err := extractPage(reader, i)
		if err != nil {
			n.deps.logger().Warn("page extraction failed",
				slog.Int("page", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := acc.Write(text + "\n"); err != nil {
			return nil, fmt.Errorf("accumulating page %d: %w", i, err)
		}
		extracted++
	}

	text, fingerprint, err := acc.Finalize()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no extractable text in PDF; scanned image documents are not supported")
	}

	n.deps.logger().Info("extracted FIR document",
		slog.String("filename", up.Filename),
		slog.Int("pages", pages),
		slog.Int("pages_with_text", extracted),
		slog.Int("text_length", len(text)),
	)

	return Document{
		Meta: datatypes.DocumentMeta{
			Filename:    up.Filename,
			Pages:       pages,
			SizeBytes:   int64(len(up.Data)),
			Fingerprint: fingerprint,
		},
		Text: text,
	}, nil
}

// openPDF wraps pdf.NewReader with panic recovery; the parser panics on
// some malformed files.
func openPDF(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// extractPage reads one page's plain text, recovering parser panics.
func extractPage(reader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
