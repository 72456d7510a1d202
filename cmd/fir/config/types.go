// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FIRConfig is the fir CLI configuration, read from ~/.fir/fir.yaml.
type FIRConfig struct {
	// Corpus: where statute and guideline JSONL files live locally.
	Corpus CorpusConfig `yaml:"corpus" validate:"required"`

	// GCS: the bucket corpus files are synced with. Optional; only the
	// corpus pull/push commands need it.
	GCS GCSConfig `yaml:"gcs"`

	// ModelBackend: which LLM provider the serve command and the ingest
	// embedder default to.
	ModelBackend BackendConfig `yaml:"model_backend" validate:"required"`
}

// CorpusConfig holds local corpus directories.
type CorpusConfig struct {
	StatutesDir   string `yaml:"statutes_dir" validate:"required"`
	GuidelinesDir string `yaml:"guidelines_dir"`
}

// GCSConfig holds the bucket used by corpus pull/push.
type GCSConfig struct {
	ProjectID string `yaml:"project_id"`
	Bucket    string `yaml:"bucket"`
	// Prefix is the object prefix corpus files are stored under.
	Prefix string `yaml:"prefix"`
	// ServiceAccountKey is the path to a service account JSON key.
	ServiceAccountKey string `yaml:"service_account_key"`
}

// BackendConfig selects the LLM provider.
type BackendConfig struct {
	// Type can be "local", "ollama", "openai", "claude", or "mock".
	Type    string `yaml:"type" validate:"required,oneof=local ollama openai claude anthropic mock"`
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
}

// Validate checks the configuration against its struct tags.
func Validate(cfg FIRConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() FIRConfig {
	return FIRConfig{
		Corpus: CorpusConfig{
			StatutesDir:   "./corpus/statutes",
			GuidelinesDir: "./corpus/guidelines",
		},
		GCS: GCSConfig{
			Prefix: "corpus",
		},
		ModelBackend: BackendConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
		},
	}
}
