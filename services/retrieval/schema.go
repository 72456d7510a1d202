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
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

func GetStatuteSectionSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "StatuteSection",
		Description: "A chunk of statutory text from one of the charged acts.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "act",
				DataType:        []string{"text"},
				Description:     "Canonical act label (NDPS, BNS, BNSS, BSA).",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "section_number",
				DataType:        []string{"text"},
				Description:     "Section identifier within the act, e.g. '8' or '20(b)(ii)(C)'.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "subsection",
				DataType:        []string{"text"},
				Description:     "Subsection identifier when the chunk covers one, empty otherwise.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "chapter",
				DataType:        []string{"text"},
				Description:     "Chapter number within the act.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "chapter_heading",
				DataType:     []string{"text"},
				Description:  "Heading of the chapter this section belongs to.",
				Tokenization: "word",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The statutory text of this chunk.",
				Tokenization: "word",
			},
			{
				Name:            "page_number",
				DataType:        []string{"int"},
				Description:     "Page in the source PDF this chunk was taken from.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:         "source_url",
				DataType:     []string{"text"},
				Description:  "Public URL of the source document.",
				Tokenization: "field",
			},
			{
				Name:            "pdf_name",
				DataType:        []string{"text"},
				Description:     "File name of the source PDF.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

func GetForensicGuidelineSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "ForensicGuideline",
		Description: "A chunk of forensic and procedural guidance used for investigation planning.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "chapter",
				DataType:        []string{"text"},
				Description:     "Chapter number within the guideline manual.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "chapter_title",
				DataType:     []string{"text"},
				Description:  "Title of the chapter this chunk belongs to.",
				Tokenization: "word",
			},
			{
				Name:         "headings",
				DataType:     []string{"text[]"},
				Description:  "Section headings under which this chunk appears.",
				Tokenization: "word",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The guidance text of this chunk.",
				Tokenization: "word",
			},
			{
				Name:            "page_number",
				DataType:        []string{"int"},
				Description:     "Page in the source PDF this chunk was taken from.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:         "source_url",
				DataType:     []string{"text"},
				Description:  "Public URL of the source document.",
				Tokenization: "field",
			},
			{
				Name:            "pdf_name",
				DataType:        []string{"text"},
				Description:     "File name of the source PDF.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

func EnsureSchema(client *weaviate.Client) {
	// A list of functions that return our schema definitions.
	schemaGetters := []func() *models.Class{
		GetStatuteSectionSchema,
		GetForensicGuidelineSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		// Check if the class already exists.
		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			// If it doesn't exist, the client returns an error. We can now create it.
			slog.Info("Schema not found, creating it...", "class", class.Class)
			err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
			if err != nil {
				// If we fail to create it, it's a fatal error.
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}
