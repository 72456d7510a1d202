// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantField string
		wantValue any
	}{
		{
			name:      "clean JSON",
			input:     `{"act":"NDPS","section_number":"Section 20"}`,
			wantErr:   false,
			wantField: "act",
			wantValue: "NDPS",
		},
		{
			name:      "JSON with whitespace",
			input:     `   {"relevant":false}   `,
			wantErr:   false,
			wantField: "relevant",
			wantValue: false,
		},
		{
			name:      "markdown JSON block",
			input:     "```json\n{\"relevant\":true}\n```",
			wantErr:   false,
			wantField: "relevant",
			wantValue: true,
		},
		{
			name:      "generic code block",
			input:     "```\n{\"relevant\":true}\n```",
			wantErr:   false,
			wantField: "relevant",
			wantValue: true,
		},
		{
			name:      "uppercase fence tag",
			input:     "```JSON\n{\"relevant\":true}\n```",
			wantErr:   false,
			wantField: "relevant",
			wantValue: true,
		},
		{
			name:      "JSON with preamble",
			input:     "Here is my analysis:\n{\"relevant\":true}",
			wantErr:   false,
			wantField: "relevant",
			wantValue: true,
		},
		{
			name:      "JSON with postamble",
			input:     "{\"relevant\":true}\nHope this helps!",
			wantErr:   false,
			wantField: "relevant",
			wantValue: true,
		},
		{
			name:      "nested braces in string",
			input:     `{"reasoning":"possession {of contraband} proven","relevant":true}`,
			wantErr:   false,
			wantField: "relevant",
			wantValue: true,
		},
		{
			name:      "escaped quotes in string",
			input:     `{"reasoning":"the FIR says \"recovered 5kg\"","relevant":true}`,
			wantErr:   false,
			wantField: "relevant",
			wantValue: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   \t\n  ",
			wantErr: true,
		},
		{
			name:    "no JSON",
			input:   "This is just plain prose without any structure",
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			input:   "{relevant: true}",
			wantErr: true,
		},
		{
			name:    "incomplete JSON",
			input:   "{\"relevant\":true",
			wantErr: true,
		},
		{
			name:      "multiple JSON objects - first valid taken",
			input:     `{"first":1} {"second":2}`,
			wantErr:   false,
			wantField: "first",
			wantValue: float64(1),
		},
		{
			name:      "deeply nested object",
			input:     `{"outer":{"inner":{"relevant":true}}}`,
			wantErr:   false,
			wantField: "outer",
			wantValue: map[string]any{"inner": map[string]any{"relevant": true}},
		},
		{
			name:      "array field",
			input:     `{"points":["seizure","arrest"],"relevant":true}`,
			wantErr:   false,
			wantField: "points",
			wantValue: []any{"seizure", "arrest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed map[string]any
			if err := json.Unmarshal(result, &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v", err)
			}

			if tt.wantField != "" {
				val, exists := parsed[tt.wantField]
				if !exists {
					t.Errorf("expected field %q not found", tt.wantField)
				}

				switch expected := tt.wantValue.(type) {
				case bool, string, float64:
					if val != expected {
						t.Errorf("expected %v, got %v", expected, val)
					}
				case []any:
					gotArr, ok := val.([]any)
					if !ok {
						t.Errorf("expected array, got %T", val)
					}
					if len(gotArr) != len(expected) {
						t.Errorf("expected %d elements, got %d", len(expected), len(gotArr))
					}
				case map[string]any:
					if _, ok := val.(map[string]any); !ok {
						t.Errorf("expected map, got %T", val)
					}
				}
			}
		})
	}
}

// TestExtractJSON_TopLevelArray tests extraction of a bare JSON array.
//
// # Description
//
// Evidence checklists and point lists sometimes come back as a top-level
// array rather than an object.
func TestExtractJSON_TopLevelArray(t *testing.T) {
	t.Parallel()

	input := "The checklist:\n[\"seal the samples\",\"record witnesses\"]"
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var items []string
	if err := json.Unmarshal(result, &items); err != nil {
		t.Fatalf("result is not a valid array: %v", err)
	}
	if len(items) != 2 || items[0] != "seal the samples" {
		t.Errorf("unexpected items: %v", items)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type mapping struct {
		SectionNumber string `json:"section_number"`
		Relevant      bool   `json:"relevant"`
	}

	t.Run("typed decode", func(t *testing.T) {
		input := "```json\n{\"section_number\":\"Section 20\",\"relevant\":true}\n```"
		got, err := DecodeJSON[mapping](input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.SectionNumber != "Section 20" || !got.Relevant {
			t.Errorf("unexpected decode result: %+v", got)
		}
	})

	t.Run("slice decode", func(t *testing.T) {
		input := `[{"section_number":"Section 8"},{"section_number":"Section 20"}]`
		got, err := DecodeJSON[[]mapping](input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[1].SectionNumber != "Section 20" {
			t.Errorf("unexpected decode result: %+v", got)
		}
	})

	t.Run("no JSON present", func(t *testing.T) {
		_, err := DecodeJSON[mapping]("nothing structured here")
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := DecodeJSON[mapping](`{"section_number":42}`)
		if err == nil {
			t.Error("expected error for wrong field type")
		}
	})
}
