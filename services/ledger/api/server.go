// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes stored run reports over HTTP.
//
// # Description
//
// A read-only gin surface for downstream comparison of evaluation runs:
// list runs, fetch a report, and diff two runs' fingerprints facet by
// facet. Prometheus metrics are served on /metrics. Run execution stays
// in the CLI and library; the API never mutates reports.
//
// # Thread Safety
//
// Handlers are stateless; concurrency safety comes from the store.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/EvalLedger/services/ledger/runner"
	"github.com/AleutianAI/EvalLedger/services/ledger/store"
)

// Config holds the API server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// Gatherer serves /metrics. Nil falls back to the Prometheus
	// default gatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine with all routes registered.
//
// Inputs:
//   - st: the report store backing the read endpoints. Must not be nil.
//   - cfg: server configuration.
//
// Outputs:
//   - *gin.Engine: ready to serve. Never nil.
func NewRouter(st *store.ReportStore, cfg Config) *gin.Engine {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", Health())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/runs", ListRuns(st))
		v1.GET("/runs/:id", GetRun(st))
		v1.GET("/runs/:id/compare/:b", CompareRuns(st))
	}
	return router
}

// Serve runs the router until the listener fails.
func Serve(st *store.ReportStore, cfg Config) error {
	router := NewRouter(st, cfg)
	return router.Run(fmt.Sprintf(":%d", cfg.Port))
}

// Health reports liveness.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ListRuns returns all stored run IDs.
func ListRuns(st *store.ReportStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := st.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": ids})
	}
}

// GetRun returns one stored report.
func GetRun(st *store.ReportStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		report, err := st.Get(id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("run %s not found", id)})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// CompareRuns diffs two stored runs' fingerprints.
//
// Description:
//
//	Responds with the divergent facet names and a boolean verdict.
//	Equal fingerprints on every shared facet mean both runs scored the
//	same record multiset per facet, regardless of batch order.
func CompareRuns(st *store.ReportStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		load := func(id string) (*runner.RunReport, bool) {
			report, err := st.Get(id)
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("run %s not found", id)})
				return nil, false
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
				return nil, false
			}
			return report, true
		}

		a, ok := load(c.Param("id"))
		if !ok {
			return
		}
		b, ok := load(c.Param("b"))
		if !ok {
			return
		}

		divergent := runner.CompareReports(a, b)
		c.JSON(http.StatusOK, gin.H{
			"run_a":     a.RunID,
			"run_b":     b.RunID,
			"identical": len(divergent) == 0,
			"divergent": divergent,
		})
	}
}
