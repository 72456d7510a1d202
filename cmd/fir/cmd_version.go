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
	"fmt"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("fir %s (commit %s, built %s)\n", version, commit, date)
}
