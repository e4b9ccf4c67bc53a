// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command evalledger runs evaluation scenarios and serves stored reports.
//
// # Usage
//
//	# Execute a scenario over a JSONL batch stream
//	evalledger run --scenario scenario.yaml --input batches.jsonl
//
//	# Diff two stored runs' fingerprints
//	evalledger compare --store /var/lib/evalledger <run-a> <run-b>
//
//	# Serve stored reports over HTTP
//	evalledger serve --store /var/lib/evalledger --port 12290
//
// # Environment Variables
//
//   - EVALLEDGER_PORT: HTTP server port (default: 12290)
//   - EVALLEDGER_STORE: report store directory (default: none)
package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evalledger",
	Short: "Order-independent integrity ledger for evaluation runs",
	Long: "evalledger aggregates per-record evaluation results into a score set and\n" +
		"fingerprints the record multiset each metric consumed, so two runs over the\n" +
		"same data are provably identical no matter how the data was ordered or batched.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		slog.SetDefault(logger)
	},
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
