// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EvalLedger/services/ledger/fingerprint"
	"github.com/AleutianAI/EvalLedger/services/ledger/metric"
	"github.com/AleutianAI/EvalLedger/services/ledger/runner"
	"github.com/AleutianAI/EvalLedger/services/ledger/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func reportWith(runID string, facets map[string]string) *runner.RunReport {
	res := metric.Result{"accuracy": 0.5}
	for name, seed := range facets {
		acc := fingerprint.New()
		acc.Update([]byte(seed))
		res[metric.HashValueKey(name)] = acc.Digest()
	}
	return &runner.RunReport{
		RunID:      runID,
		ScenarioID: "nightly",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Results:    res,
	}
}

func newTestRouter(t *testing.T, reports ...*runner.RunReport) *gin.Engine {
	t.Helper()
	st, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	for _, r := range reports {
		require.NoError(t, st.Put(r))
	}
	return NewRouter(st, Config{Gatherer: prometheus.NewRegistry()})
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w := doGet(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListRuns(t *testing.T) {
	router := newTestRouter(t,
		reportWith("run-b", map[string]string{"accuracy": "x"}),
		reportWith("run-a", map[string]string{"accuracy": "x"}),
	)

	w := doGet(router, "/v1/runs")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Runs []string `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"run-a", "run-b"}, body.Runs)
}

func TestGetRun(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		router := newTestRouter(t, reportWith("run-1", map[string]string{"accuracy": "x"}))
		w := doGet(router, "/v1/runs/run-1")
		require.Equal(t, http.StatusOK, w.Code)

		var got runner.RunReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "run-1", got.RunID)
		assert.Contains(t, got.Fingerprints(), "accuracy")
	})

	t.Run("missing is 404", func(t *testing.T) {
		router := newTestRouter(t)
		w := doGet(router, "/v1/runs/ghost")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCompareRuns(t *testing.T) {
	t.Run("identical runs", func(t *testing.T) {
		router := newTestRouter(t,
			reportWith("run-1", map[string]string{"accuracy": "x", "score_avg": "y"}),
			reportWith("run-2", map[string]string{"accuracy": "x", "score_avg": "y"}),
		)
		w := doGet(router, "/v1/runs/run-1/compare/run-2")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Identical bool     `json:"identical"`
			Divergent []string `json:"divergent"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Identical)
		assert.Empty(t, body.Divergent)
	})

	t.Run("divergent facet is reported", func(t *testing.T) {
		router := newTestRouter(t,
			reportWith("run-1", map[string]string{"accuracy": "x", "score_avg": "y"}),
			reportWith("run-2", map[string]string{"accuracy": "x", "score_avg": "DIFFERENT"}),
		)
		w := doGet(router, "/v1/runs/run-1/compare/run-2")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Identical bool     `json:"identical"`
			Divergent []string `json:"divergent"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Identical)
		assert.Equal(t, []string{"score_avg"}, body.Divergent)
	})

	t.Run("missing side is 404", func(t *testing.T) {
		router := newTestRouter(t, reportWith("run-1", map[string]string{"accuracy": "x"}))
		w := doGet(router, "/v1/runs/run-1/compare/ghost")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doGet(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
