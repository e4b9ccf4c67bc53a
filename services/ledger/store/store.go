// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists run reports in an embedded BadgerDB.
//
// # Description
//
// The fingerprint core deliberately does not persist anything across
// process restarts; comparing runs after the fact is this package's job.
// Reports are stored as JSON values under a "report:" key prefix, so a
// later run can be diffed against any stored one.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
//
// # Thread Safety
//
// ReportStore is safe for concurrent use; BadgerDB transactions provide
// the isolation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/EvalLedger/services/ledger/runner"
)

// ErrNotFound is returned when no report exists for a run ID.
var ErrNotFound = errors.New("report not found")

const reportPrefix = "report:"

// Config holds configuration for the report store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: in-memory, async.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// ReportStore persists and retrieves run reports.
type ReportStore struct {
	db *badger.DB
}

// Open creates a ReportStore with the given configuration.
//
// Inputs:
//   - cfg: store configuration. Path is required unless InMemory.
//
// Outputs:
//   - *ReportStore: the opened store. Caller must Close it.
//   - error: invalid path or BadgerDB open failure.
func Open(cfg Config) (*ReportStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return &ReportStore{db: db}, nil
}

// Close releases the underlying database.
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// Put stores a report under its run ID, overwriting any previous value.
func (s *ReportStore) Put(report *runner.RunReport) error {
	if report == nil || report.RunID == "" {
		return errors.New("report must have a run ID")
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", report.RunID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(reportPrefix+report.RunID), raw)
	})
	if err != nil {
		return fmt.Errorf("store report %s: %w", report.RunID, err)
	}
	return nil
}

// Get retrieves a report by run ID.
//
// Outputs:
//   - *runner.RunReport: the stored report. Nil on error.
//   - error: ErrNotFound when the ID has no report.
func (s *ReportStore) Get(runID string) (*runner.RunReport, error) {
	var report runner.RunReport
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Delete removes a report. Deleting a missing ID is not an error.
func (s *ReportStore) Delete(runID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(reportPrefix + runID))
	})
}

// List returns all stored run IDs, sorted.
func (s *ReportStore) List() ([]string, error) {
	ids := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(reportPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, reportPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
