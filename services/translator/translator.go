// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package translator converts FIR text to English with Cloud Translation v3
// so the analysis pipeline always reasons over a single language. FIRs are
// routinely filed in Hindi, Marathi, and other regional languages.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v3"
)

var tracer = otel.Tracer("fir.translator")

// ErrTranslatorDisabled is returned when no Cloud Translation project is
// configured. The pipeline treats this as "document is already English".
var ErrTranslatorDisabled = errors.New("translator: not configured")

const (
	defaultLocation = "global"
	englishCode     = "en"
	mimePlainText   = "text/plain"

	// Language detection is reliable on a prefix; no need to ship the
	// whole document.
	detectSampleRunes = 1000

	// Cloud Translation v3 rejects requests above 30,000 code points.
	maxSegmentRunes = 28000
)

// Result reports what the translator did with the document.
type Result struct {
	Text             string
	DetectedLanguage string
	Translated       bool
}

// Translator converts FIR text to English ahead of fact extraction.
type Translator interface {
	TranslateToEnglish(ctx context.Context, text string) (Result, error)
}

// Config carries the Cloud Translation project coordinates.
type Config struct {
	ProjectID       string
	Location        string
	CredentialsFile string
}

// FromEnv builds a Config from TRANSLATE_PROJECT_ID, TRANSLATE_LOCATION,
// and GOOGLE_APPLICATION_CREDENTIALS.
func FromEnv() Config {
	return Config{
		ProjectID:       os.Getenv("TRANSLATE_PROJECT_ID"),
		Location:        os.Getenv("TRANSLATE_LOCATION"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}
}

// GoogleTranslator talks to the Cloud Translation v3 REST API.
type GoogleTranslator struct {
	service *translate.Service
	parent  string
}

func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*GoogleTranslator, error) {
	if cfg.ProjectID == "" {
		return nil, ErrTranslatorDisabled
	}
	if cfg.Location == "" {
		cfg.Location = defaultLocation
	}
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("credentials file not found at path: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	service, err := translate.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation service: %w", err)
	}

	return &GoogleTranslator{
		service: service,
		parent:  fmt.Sprintf("projects/%s/locations/%s", cfg.ProjectID, cfg.Location),
	}, nil
}

// TranslateToEnglish detects the document language and translates when it is
// not already English. Oversized documents are translated in segments and
// reassembled in order.
func (t *GoogleTranslator) TranslateToEnglish(ctx context.Context, text string) (Result, error) {
	if t == nil || t.service == nil {
		return Result{}, ErrTranslatorDisabled
	}
	ctx, span := tracer.Start(ctx, "translator.translate_to_english")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return Result{Text: text, DetectedLanguage: "und"}, nil
	}

	lang, err := t.detect(ctx, text)
	if err != nil {
		return Result{}, err
	}
	if lang == englishCode || strings.HasPrefix(lang, englishCode+"-") {
		slog.Debug("Document already in English, skipping translation", "detected_language", lang)
		return Result{Text: text, DetectedLanguage: lang}, nil
	}

	var out strings.Builder
	for _, segment := range splitSegments(text, maxSegmentRunes) {
		req := &translate.TranslateTextRequest{
			Contents:           []string{segment},
			MimeType:           mimePlainText,
			TargetLanguageCode: englishCode,
		}
		resp, err := t.service.Projects.Locations.TranslateText(t.parent, req).Context(ctx).Do()
		if err != nil {
			return Result{}, fmt.Errorf("failed to translate document: %w", err)
		}
		for _, translation := range resp.Translations {
			out.WriteString(translation.TranslatedText)
		}
	}

	slog.Info("Translated document to English",
		"detected_language", lang,
		"input_length", len(text),
		"output_length", out.Len())
	return Result{Text: out.String(), DetectedLanguage: lang, Translated: true}, nil
}

func (t *GoogleTranslator) detect(ctx context.Context, text string) (string, error) {
	sample := text
	if runes := []rune(sample); len(runes) > detectSampleRunes {
		sample = string(runes[:detectSampleRunes])
	}

	req := &translate.DetectLanguageRequest{
		Content:  sample,
		MimeType: mimePlainText,
	}
	resp, err := t.service.Projects.Locations.DetectLanguage(t.parent, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to detect document language: %w", err)
	}
	if len(resp.Languages) == 0 {
		return "und", nil
	}
	// Languages come back ordered by confidence.
	return resp.Languages[0].LanguageCode, nil
}

// splitSegments breaks text into rune-bounded chunks, preferring a newline
// near the limit so lines are not cut mid-sentence.
func splitSegments(text string, maxRunes int) []string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}

	var segments []string
	for len(runes) > maxRunes {
		cut := maxRunes
		for i := maxRunes - 1; i > maxRunes/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		segments = append(segments, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		segments = append(segments, string(runes))
	}
	return segments
}

var _ Translator = (*GoogleTranslator)(nil)
