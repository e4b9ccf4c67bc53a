// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for evaluation runs.
//
// # Description
//
// This package implements Prometheus metrics for monitoring evaluation
// run execution. Metrics include:
//   - Batch update counters (by metric name and status)
//   - Hashed record counters (by metric name)
//   - Close duration histograms
//   - Active run gauges
//
// # Integration
//
// Metrics are exposed via the API server's /metrics endpoint. Use with
// Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "evalledger"

// Subsystem for run metrics
const runSubsystem = "run"

// LedgerMetrics holds all Prometheus metrics for evaluation runs.
//
// Initialize once at startup via NewLedgerMetrics; registering the same
// metrics twice on one registry panics inside promauto.
type LedgerMetrics struct {
	// BatchesTotal counts batch updates by metric name and status.
	// Labels: metric, status (success, error)
	BatchesTotal *prometheus.CounterVec

	// RecordsHashedTotal counts records folded into fingerprints.
	// Labels: metric
	RecordsHashedTotal *prometheus.CounterVec

	// CloseDurationSeconds measures time spent in Close per run.
	CloseDurationSeconds prometheus.Histogram

	// RunDurationSeconds measures total run duration.
	// Labels: status (success, error)
	RunDurationSeconds *prometheus.HistogramVec

	// ActiveRuns gauges currently executing runs.
	ActiveRuns prometheus.Gauge

	// ErrorsTotal counts run errors by stage.
	// Labels: stage (update, close, input)
	ErrorsTotal *prometheus.CounterVec
}

// NewLedgerMetrics creates and registers all run metrics.
//
// Inputs:
//   - reg: target registry. Nil falls back to the Prometheus default
//     registerer (production); tests pass prometheus.NewRegistry().
//
// Outputs:
//   - *LedgerMetrics: the initialized metrics instance. Never nil.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &LedgerMetrics{
		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "batches_total",
				Help:      "Total batch updates by metric and status",
			},
			[]string{"metric", "status"},
		),

		RecordsHashedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "records_hashed_total",
				Help:      "Total records folded into fingerprint accumulators",
			},
			[]string{"metric"},
		),

		CloseDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "close_duration_seconds",
				Help:      "Time spent closing the metric chain in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
		),

		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "duration_seconds",
				Help:      "Total evaluation run duration in seconds",
				Buckets:   []float64{0.1, 1, 5, 30, 60, 300, 1800},
			},
			[]string{"status"},
		),

		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "active_runs",
				Help:      "Number of currently executing evaluation runs",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "errors_total",
				Help:      "Total run errors by stage",
			},
			[]string{"stage"},
		),
	}
}
