// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EvalLedger/services/ledger/metric"
	"github.com/AleutianAI/EvalLedger/services/ledger/runner"
)

func openTestStore(t *testing.T) *ReportStore {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(runID string) *runner.RunReport {
	return &runner.RunReport{
		RunID:      runID,
		ScenarioID: "nightly",
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
		Batches:    3,
		Results: metric.Result{
			"accuracy": 0.75,
			metric.HashValueKey("accuracy"): "00000000000000000000000000000000000000000000000000000000000000aa",
		},
	}
}

func TestReportStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := sampleReport("run-1")
	require.NoError(t, s.Put(want))

	got, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.ScenarioID, got.ScenarioID)
	assert.Equal(t, want.Batches, got.Batches)
	assert.Equal(t, 0.75, got.Results["accuracy"])
	assert.Equal(t, want.Fingerprints(), got.Fingerprints())
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
}

func TestReportStore_Get_Missing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportStore_Put_Invalid(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Put(nil))
	assert.Error(t, s.Put(&runner.RunReport{}))
}

func TestReportStore_List(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(sampleReport("run-b")))
	require.NoError(t, s.Put(sampleReport("run-a")))
	require.NoError(t, s.Put(sampleReport("run-c")))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b", "run-c"}, ids)
}

func TestReportStore_Delete(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(sampleReport("run-1")))
	require.NoError(t, s.Delete("run-1"))

	_, err := s.Get("run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing ID is not an error.
	assert.NoError(t, s.Delete("run-1"))
}

func TestReportStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Put(sampleReport("run-1")))
	require.NoError(t, s.Close())

	// A fresh open over the same directory still sees the report.
	s2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
}
