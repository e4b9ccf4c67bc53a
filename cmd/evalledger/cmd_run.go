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
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/EvalLedger/services/ledger/config"
	"github.com/AleutianAI/EvalLedger/services/ledger/metric"
	"github.com/AleutianAI/EvalLedger/services/ledger/runner"
	"github.com/AleutianAI/EvalLedger/services/ledger/store"
)

var (
	runScenarioPath string
	runInputPath    string
	runStorePath    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute an evaluation scenario over a JSONL batch stream",
	Long: "Reads one JSON batch object per input line, feeds every batch through the\n" +
		"scenario's metric chain, and prints the resulting report. With a store\n" +
		"configured, the report is persisted for later comparison.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runScenarioPath, "scenario", "", "scenario YAML file (required)")
	runCmd.Flags().StringVar(&runInputPath, "input", "-", "JSONL batch file, - for stdin")
	runCmd.Flags().StringVar(&runStorePath, "store", getEnvString("EVALLEDGER_STORE", ""), "report store directory (overrides scenario)")
	_ = runCmd.MarkFlagRequired("scenario")
}

func runRun(cmd *cobra.Command, _ []string) error {
	scenario, err := config.Load(runScenarioPath)
	if err != nil {
		return err
	}

	chain, err := scenario.BuildChain()
	if err != nil {
		return err
	}

	input := os.Stdin
	if runInputPath != "-" {
		f, err := os.Open(runInputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	batches := make(chan metric.Batch, 16)
	readErr := make(chan error, 1)
	go func() {
		defer close(batches)
		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			var batch metric.Batch
			if err := json.Unmarshal(raw, &batch); err != nil {
				readErr <- fmt.Errorf("input line %d: %w", line, err)
				return
			}
			batches <- batch
		}
		readErr <- scanner.Err()
	}()

	r := runner.New(
		runner.WithLogger(slog.Default()),
		runner.WithWorkers(scenario.Run.Workers),
	)
	report, err := r.Run(cmd.Context(), scenario.Metadata.ID, chain, batches)
	if err != nil {
		return err
	}
	if err := <-readErr; err != nil {
		return err
	}

	storePath := runStorePath
	if storePath == "" {
		storePath = scenario.Run.StorePath
	}
	if storePath != "" {
		st, err := store.Open(store.DefaultConfig(storePath))
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Put(report); err != nil {
			return err
		}
		slog.Info("report stored", "run_id", report.RunID, "path", storePath)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
