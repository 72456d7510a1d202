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
	"os"
	"path"
	"time"

	"github.com/bleedingrockk/FIR-legal-analysis-system/cmd/fir/config"
	"github.com/bleedingrockk/FIR-legal-analysis-system/cmd/fir/gcs"
	"github.com/bleedingrockk/FIR-legal-analysis-system/pkg/ux"
	"github.com/spf13/cobra"
)

// corpusClient builds a GCS client from the loaded config. The gcs
// section is optional in the config file, so missing fields are reported
// here rather than at validation time.
func corpusClient(ctx context.Context) (*gcs.Client, error) {
	g := config.Global.GCS
	if g.Bucket == "" {
		return nil, fmt.Errorf("gcs.bucket is not set in the config file")
	}
	if g.ServiceAccountKey == "" {
		return nil, fmt.Errorf("gcs.service_account_key is not set in the config file")
	}
	return gcs.NewClient(ctx, g.ProjectID, g.Bucket, g.ServiceAccountKey)
}

// runCorpusPull downloads the statute and guideline corpus from GCS into
// the configured local directories.
func runCorpusPull(cmd *cobra.Command, args []string) {
	start := time.Now()
	jsonMode, _ := cmd.Flags().GetBool("json")
	outCfg := OutputConfig{JSON: jsonMode}

	if err := config.Load(); err != nil {
		os.Exit(OutputResult(outCfg, "corpus pull", start, nil, false, err))
	}

	ctx := context.Background()
	client, err := corpusClient(ctx)
	if err != nil {
		os.Exit(OutputResult(outCfg, "corpus pull", start, nil, false, err))
	}
	defer client.Close()

	g := config.Global.GCS
	c := config.Global.Corpus

	var files []string
	transfer := func() error {
		pulled, err := client.DownloadPrefix(ctx, path.Join(g.Prefix, "statutes"), c.StatutesDir)
		files = append(files, pulled...)
		if err == nil && c.GuidelinesDir != "" {
			pulled, err = client.DownloadPrefix(ctx, path.Join(g.Prefix, "guidelines"), c.GuidelinesDir)
			files = append(files, pulled...)
		}
		return err
	}
	if jsonMode {
		err = transfer()
	} else {
		err = ux.WithSpinner(fmt.Sprintf("Pulling corpus from gs://%s/%s", g.Bucket, g.Prefix), transfer)
	}
	if err != nil {
		os.Exit(OutputResult(outCfg, "corpus pull", start, nil, false, err))
	}

	if !jsonMode {
		for _, f := range files {
			ux.FileStatus(f, ux.IconSuccess, "downloaded")
		}
		ux.Success(fmt.Sprintf("Pulled %d corpus files", len(files)))
	}

	result := CorpusSyncResult{
		Direction: "pull",
		Bucket:    g.Bucket,
		Prefix:    g.Prefix,
		Files:     files,
		Count:     len(files),
	}
	os.Exit(OutputResult(outCfg, "corpus pull", start, result, false, nil))
}

// runCorpusPush uploads the local corpus directories to GCS.
func runCorpusPush(cmd *cobra.Command, args []string) {
	start := time.Now()
	jsonMode, _ := cmd.Flags().GetBool("json")
	outCfg := OutputConfig{JSON: jsonMode}

	if err := config.Load(); err != nil {
		os.Exit(OutputResult(outCfg, "corpus push", start, nil, false, err))
	}

	ctx := context.Background()
	client, err := corpusClient(ctx)
	if err != nil {
		os.Exit(OutputResult(outCfg, "corpus push", start, nil, false, err))
	}
	defer client.Close()

	g := config.Global.GCS
	c := config.Global.Corpus

	var objects []string
	transfer := func() error {
		uploaded, err := client.UploadDir(ctx, c.StatutesDir, path.Join(g.Prefix, "statutes"))
		objects = append(objects, uploaded...)
		if err == nil && c.GuidelinesDir != "" {
			if _, statErr := os.Stat(c.GuidelinesDir); statErr == nil {
				uploaded, err = client.UploadDir(ctx, c.GuidelinesDir, path.Join(g.Prefix, "guidelines"))
				objects = append(objects, uploaded...)
			}
		}
		return err
	}
	if jsonMode {
		err = transfer()
	} else {
		err = ux.WithSpinner(fmt.Sprintf("Pushing corpus to gs://%s/%s", g.Bucket, g.Prefix), transfer)
	}
	if err != nil {
		os.Exit(OutputResult(outCfg, "corpus push", start, nil, false, err))
	}

	if !jsonMode {
		for _, o := range objects {
			ux.FileStatus(o, ux.IconSuccess, "uploaded")
		}
		ux.Success(fmt.Sprintf("Pushed %d corpus files", len(objects)))
	}

	result := CorpusSyncResult{
		Direction: "push",
		Bucket:    g.Bucket,
		Prefix:    g.Prefix,
		Files:     objects,
		Count:     len(objects),
	}
	os.Exit(OutputResult(outCfg, "corpus push", start, result, false, nil))
}
