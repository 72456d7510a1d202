// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/cmd/fir/config"
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/ux"
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/validation"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/llm"
	"github.com/bleedingrockk/FIR-legal-analysis-system/services/retrieval"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// runIngest loads statute and guideline JSONL files into Weaviate.
//
// With no arguments the configured corpus directories are ingested. Each
// path argument may be a file or a directory; directories are scanned for
// .jsonl files.
//
// # Exit Codes
//
//   - 0: All files ingested
//   - 1: Some files were skipped or failed
//   - 2: Setup error (config, Weaviate, embedder)
func runIngest(cmd *cobra.Command, args []string) {
	start := time.Now()
	jsonMode, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")
	outCfg := OutputConfig{JSON: jsonMode, Quiet: quiet}

	if err := config.Load(); err != nil {
		os.Exit(OutputResult(outCfg, "ingest", start, nil, false, err))
	}

	if ingestAct != "" {
		if err := validation.ValidateActCode(ingestAct); err != nil {
			os.Exit(OutputResult(outCfg, "ingest", start, nil, false, err))
		}
	}

	ingestor, err := newIngestor()
	if err != nil {
		os.Exit(OutputResult(outCfg, "ingest", start, nil, false, err))
	}

	paths := args
	if len(paths) == 0 {
		paths = []string{config.Global.Corpus.StatutesDir}
		if dir := config.Global.Corpus.GuidelinesDir; dir != "" {
			paths = append(paths, dir)
		}
	}

	files, err := collectJSONL(paths)
	if err != nil {
		os.Exit(OutputResult(outCfg, "ingest", start, nil, false, err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := ingestFiles(ctx, ingestor, files, !jsonMode && !quiet)

	if !jsonMode && !quiet {
		ux.Summary(result.Chunks, result.Skipped, len(result.Files))
	}

	if ingestWatch {
		if err := watchAndIngest(ctx, ingestor, paths); err != nil {
			os.Exit(OutputResult(outCfg, "ingest", start, result, result.Skipped > 0, err))
		}
	}

	result.Duration = time.Since(start).Round(time.Millisecond).String()
	os.Exit(OutputResult(outCfg, "ingest", start, result, result.Skipped > 0, nil))
}

// newIngestor wires the Weaviate client and the embedder matching the
// configured model backend.
func newIngestor() (*retrieval.Ingestor, error) {
	rawURL := os.Getenv("WEAVIATE_SERVICE_URL")
	if rawURL == "" {
		rawURL = "http://localhost:8081"
	}
	parsed, err := url.Parse(strings.Trim(rawURL, `"'`))
	if err != nil {
		return nil, fmt.Errorf("invalid WEAVIATE_SERVICE_URL %q: %w", rawURL, err)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create the Weaviate client: %w", err)
	}
	retrieval.EnsureSchema(client)

	var embedder llm.Embedder
	switch config.Global.ModelBackend.Type {
	case "openai":
		embedder, err = llm.NewOpenAIEmbedder()
	default:
		// The Ollama embedder reads its endpoint from the environment;
		// fall back to the configured backend URL.
		if os.Getenv("OLLAMA_BASE_URL") == "" && config.Global.ModelBackend.BaseURL != "" {
			os.Setenv("OLLAMA_BASE_URL", config.Global.ModelBackend.BaseURL)
		}
		embedder, err = llm.NewOllamaEmbedder()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create the embedder: %w", err)
	}

	return retrieval.NewIngestor(client, embedder), nil
}

// collectJSONL expands files and directories into a flat list of .jsonl
// paths. A missing path is an error; an empty directory is not.
func collectJSONL(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", p, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	return files, nil
}

// fileKind decides whether a file holds statutes or guidelines. The --kind
// flag overrides; otherwise guideline files are recognized by name.
func fileKind(path string) string {
	if ingestKind != "" {
		return ingestKind
	}
	if strings.Contains(strings.ToLower(filepath.Base(path)), "guideline") {
		return "guidelines"
	}
	return "statutes"
}

func ingestFiles(ctx context.Context, ingestor *retrieval.Ingestor, files []string, report bool) *IngestResult {
	result := &IngestResult{}
	for _, f := range files {
		fr := ingestOne(ctx, ingestor, f)
		result.Files = append(result.Files, fr)
		if fr.Error != "" {
			result.Skipped++
			if report {
				ux.FileStatus(f, ux.IconError, fr.Error)
			}
			continue
		}
		result.Chunks += fr.Chunks
		if report {
			ux.FileStatus(f, ux.IconSuccess, fmt.Sprintf("%d chunks", fr.Chunks))
		}
	}
	return result
}

func ingestOne(ctx context.Context, ingestor *retrieval.Ingestor, path string) IngestFileResult {
	kind := fileKind(path)
	fr := IngestFileResult{Path: path, Kind: kind, Act: ingestAct}

	var chunks int
	var err error
	switch kind {
	case "guidelines":
		chunks, err = ingestor.IngestGuidelineFile(ctx, path)
	case "statutes":
		if ingestAct != "" {
			chunks, err = ingestStatutesWithAct(ctx, ingestor, path)
		} else {
			chunks, err = ingestor.IngestStatuteFile(ctx, path)
		}
	default:
		err = fmt.Errorf("unknown kind %q: use 'statutes' or 'guidelines'", kind)
	}

	fr.Chunks = chunks
	if err != nil {
		fr.Error = err.Error()
	}
	return fr
}

// ingestStatutesWithAct rewrites the act code on every record before
// ingesting. Used when a corpus file omits the act or carries a stale one.
func ingestStatutesWithAct(ctx context.Context, ingestor *retrieval.Ingestor, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := retrieval.ReadStatuteJSONL(f)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for i := range records {
		records[i].Act = ingestAct
	}
	return ingestor.IngestStatutes(ctx, records)
}

// watchAndIngest blocks, ingesting .jsonl files as they are written into
// the watched directories. Returns when the context is canceled.
func watchAndIngest(ctx context.Context, ingestor *retrieval.Ingestor, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create the file watcher: %w", err)
	}
	defer watcher.Close()

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	ux.Info("Watching for new corpus files. Ctrl-C to stop.")

	// Editors fire several writes per save; debounce per path.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			pending[event.Name] = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ux.Warning("Watcher error: " + err.Error())
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < time.Second {
					continue
				}
				delete(pending, path)
				fr := ingestOne(ctx, ingestor, path)
				if fr.Error != "" {
					ux.FileStatus(path, ux.IconError, fr.Error)
				} else {
					ux.FileStatus(path, ux.IconSuccess, fmt.Sprintf("%d chunks", fr.Chunks))
				}
			}
		}
	}
}
