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
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	servePort           int
	serveBackend        string
	serveWeaviateURL    string
	serveResultsBackend string
	serveResultsPath    string
	ingestKind          string
	ingestAct           string
	ingestWatch         bool
	personalityLevel    string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "fir",
		Short: "A cli to manage the FIR legal analysis stack",
		Long: `fir manages the First Information Report analysis service: the
				orchestrator, the statute and guideline corpus behind its
				retrieval layer, and the embedded privacy policies.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Serve ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the FIR analysis orchestrator",
		Run:   runServe, // Defined in cmd_serve.go
	}

	// --- Corpus Ingestion ---
	ingestCmd = &cobra.Command{
		Use:     "ingest [path...]",
		Short:   "Ingest statute or guideline JSONL files into the vector database",
		Aliases: []string{"i"},
		Run:     runIngest, // Defined in cmd_ingest.go
	}

	// --- Corpus Sync ---
	corpusCmd = &cobra.Command{
		Use:   "corpus",
		Short: "Sync corpus files with Google Cloud Storage",
	}
	corpusPullCmd = &cobra.Command{
		Use:   "pull",
		Short: "Download corpus files from the configured GCS bucket",
		Run:   runCorpusPull, // Defined in cmd_corpus.go
	}
	corpusPushCmd = &cobra.Command{
		Use:   "push",
		Short: "Upload local corpus files to the configured GCS bucket",
		Run:   runCorpusPush, // Defined in cmd_corpus.go
	}

	// Policies
	policyCmd = &cobra.Command{
		Use:   "policy",
		Short: "Base command to interact with the privacy policies",
		Long: `Use policy + subcommands to interact with the privacy policies that are embedded
				in the fir binary. You can define new versions as long as you rebuild the
				binary.`,
	}

	verifyPolicyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of the embedded policy rules",
		Long:  `Calculates the SHA256 hash of the compiled-in policy definitions. Use this to verify that the binary is running the expected version of your governance rules.`,
		Run:   verifyPolicies,
	}

	dumpPolicyCmd = &cobra.Command{
		Use:   "dump",
		Short: "Prints out the whole policy file to stdout",
		Long: `policy dump prints out the policies you've configured in the
				data_classification_patterns.yaml file.'`,
		Run: dumpPolicies,
	}

	testPolicyCmd = &cobra.Command{
		Use:   "test",
		Short: "Allows you to enter a test string see if the policies catch it",
		Long: `policy test allows you to enter a test string to see if that individual string
				gets caught by the policies you have in place'`,
		Args: cobra.ExactArgs(1),
		Run:  testPolicyString,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the fir build version",
		Run:   runVersion, // Defined in cmd_version.go
	}
)

// init runs when the Go program starts
func init() {
	// Global UX personality flag
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port for the orchestrator to listen on (default 8080)")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "",
		"Set LLM backend (local, ollama, openai, claude, mock). Overrides the config file.")
	serveCmd.Flags().StringVar(&serveWeaviateURL, "weaviate-url", "", "Weaviate endpoint, e.g. http://localhost:8081")
	serveCmd.Flags().StringVar(&serveResultsBackend, "results-backend", "", "Results store backend: 'memory' or 'badger'")
	serveCmd.Flags().StringVar(&serveResultsPath, "results-path", "", "Directory for the badger results store")

	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "",
		"Record kind: 'statutes' or 'guidelines'. Detected from the filename when unset.")
	ingestCmd.Flags().StringVar(&ingestAct, "act", "", "Override the act code on every record (NDPS, BNS, BNSS, BSA)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "Keep running and ingest new JSONL files as they appear")
	ingestCmd.Flags().Bool("json", false, "Output results as JSON")
	ingestCmd.Flags().Bool("quiet", false, "Suppress output, exit code only")

	// GCS corpus sync commands
	rootCmd.AddCommand(corpusCmd)
	corpusCmd.AddCommand(corpusPullCmd)
	corpusCmd.AddCommand(corpusPushCmd)
	corpusPullCmd.Flags().Bool("json", false, "Output results as JSON")
	corpusPushCmd.Flags().Bool("json", false, "Output results as JSON")

	// Policies
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(verifyPolicyCmd)
	policyCmd.AddCommand(dumpPolicyCmd)
	policyCmd.AddCommand(testPolicyCmd)
	verifyPolicyCmd.Flags().BoolVar(&policyVerifyJSON, "json", false, "Output as JSON")
	dumpPolicyCmd.Flags().BoolVar(&policyDumpJSON, "json", false, "Output as JSON")
	testPolicyCmd.Flags().BoolVar(&policyTestJSON, "json", false, "Output as JSON")
	testPolicyCmd.Flags().BoolVar(&policyTestRedact, "redact", false, "Redact matched content in output")

	rootCmd.AddCommand(versionCmd)
}
