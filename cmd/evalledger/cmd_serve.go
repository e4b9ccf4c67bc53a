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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/EvalLedger/services/ledger/api"
	"github.com/AleutianAI/EvalLedger/services/ledger/store"
)

var (
	servePort      int
	serveStorePath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored run reports over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", getEnvInt("EVALLEDGER_PORT", 12290), "HTTP listen port")
	serveCmd.Flags().StringVar(&serveStorePath, "store", getEnvString("EVALLEDGER_STORE", ""), "report store directory (required)")
	_ = serveCmd.MarkFlagRequired("store")
}

func runServe(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(store.DefaultConfig(serveStorePath))
	if err != nil {
		return err
	}
	defer st.Close()

	slog.Info("serving reports",
		slog.Int("port", servePort),
		slog.String("store", serveStorePath),
	)
	return api.Serve(st, api.Config{Port: servePort})
}
