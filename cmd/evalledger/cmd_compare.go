// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/EvalLedger/services/ledger/runner"
	"github.com/AleutianAI/EvalLedger/services/ledger/store"
)

var compareStorePath string

var compareCmd = &cobra.Command{
	Use:   "compare <run-a> <run-b>",
	Short: "Diff two stored runs' fingerprints facet by facet",
	Long: "Loads both reports from the store and compares each metric facet's\n" +
		"fingerprint. Identical fingerprints prove both runs scored the same\n" +
		"record multiset for that facet, regardless of ordering or batching.",
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareStorePath, "store", getEnvString("EVALLEDGER_STORE", ""), "report store directory (required)")
	_ = compareCmd.MarkFlagRequired("store")
}

func runCompare(cmd *cobra.Command, args []string) error {
	st, err := store.Open(store.DefaultConfig(compareStorePath))
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := st.Get(args[0])
	if err != nil {
		return err
	}
	b, err := st.Get(args[1])
	if err != nil {
		return err
	}

	divergent := runner.CompareReports(a, b)
	if len(divergent) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "runs %s and %s saw identical data on all %d facets\n",
			a.RunID, b.RunID, len(a.Fingerprints()))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "runs %s and %s diverge on %d facet(s):\n", a.RunID, b.RunID, len(divergent))
	for _, name := range divergent {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
	return fmt.Errorf("fingerprint mismatch on %d facet(s)", len(divergent))
}
