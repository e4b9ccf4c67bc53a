// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner executes evaluation runs over a metric chain.
//
// # Description
//
// A Runner consumes a stream of batches, feeds them through a metric
// chain as the single logical writer, and produces a RunReport carrying
// the merged results and every facet's fingerprint. Batches may arrive
// in any order and any grouping: the fingerprints in the report depend
// only on the record multiset each metric consumed.
//
// The chain itself stays single-writer. Parallelism lives one step
// earlier: with WithWorkers, an errgroup pool canonical-serializes and
// hashes each incoming batch into per-worker accumulators while the
// writer applies the batch to the chain, and the accumulators are
// merged with the same commutative operation into the report's batch
// digest. VerifyFanIn exposes the same pattern as a standalone helper
// for callers fanning raw records across their own workers. Hashing
// concatenated worker digests is never correct.
//
// # Thread Safety
//
// A Runner instance executes one run at a time; Run must not be called
// concurrently on the same Runner.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/EvalLedger/services/ledger/fingerprint"
	"github.com/AleutianAI/EvalLedger/services/ledger/metric"
	"github.com/AleutianAI/EvalLedger/services/ledger/observability"
)

const tracerName = "github.com/AleutianAI/EvalLedger/services/ledger/runner"

// ErrNoChain is returned when Run is called without a chain.
var ErrNoChain = errors.New("runner requires a metric chain")

// RunReport is the durable outcome of one evaluation run.
type RunReport struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// ScenarioID names the scenario that configured the run.
	ScenarioID string `json:"scenario_id"`

	// StartedAt and FinishedAt bound the run wall-clock time.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Batches is the number of batches consumed.
	Batches int `json:"batches"`

	// Results is the merged result mapping from the chain, including
	// each facet's fingerprint under its "<name>_hashvalue" key.
	Results metric.Result `json:"results"`

	// BatchDigest is the order-independent digest of every batch the
	// run consumed, whole-batch granularity. It covers fields no metric
	// declared a dependency on, so two runs can diverge here while
	// agreeing on every facet fingerprint.
	BatchDigest string `json:"batch_digest"`
}

// Fingerprints extracts the per-facet digests from the results.
//
// Outputs:
//   - map[string]string: facet name (without the _hashvalue suffix) to
//     digest, for every well-formed digest in the results.
func (r *RunReport) Fingerprints() map[string]string {
	out := make(map[string]string)
	for k, v := range r.Results {
		name, ok := hashValueFacet(k)
		if !ok {
			continue
		}
		digest, ok := v.(string)
		if !ok || fingerprint.ValidateDigest(digest) != nil {
			continue
		}
		out[name] = digest
	}
	return out
}

const hashValueSuffix = "_hashvalue"

func hashValueFacet(key string) (string, bool) {
	if len(key) <= len(hashValueSuffix) || key[len(key)-len(hashValueSuffix):] != hashValueSuffix {
		return "", false
	}
	return key[:len(key)-len(hashValueSuffix)], true
}

// Runner drives a metric chain over a batch stream.
type Runner struct {
	logger  *slog.Logger
	metrics *observability.LedgerMetrics
	workers int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.LedgerMetrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithWorkers sets the batch-hashing worker count.
//
// Values < 1 mean one worker. The worker count changes throughput only,
// never the digests: per-worker accumulators merge commutatively.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes batches until the channel closes, then closes the chain.
//
// Description:
//
//	Applies every batch to the chain in arrival order as the single
//	writer. In parallel, the configured worker pool (WithWorkers)
//	canonical-serializes each batch and folds it into per-worker
//	accumulators; the accumulators merge into the report's BatchDigest
//	when the stream ends. A batch or worker error aborts the run; the
//	chain is left open and must be discarded (partial application, no
//	rollback). Context cancellation also aborts without closing the
//	chain, so an aborted run never reports a fingerprint.
//
// Inputs:
//   - ctx: cancels the run between batches.
//   - scenarioID: recorded in the report.
//   - chain: the open metric chain. Must not be nil.
//   - batches: closed by the producer when the stream ends.
//
// Outputs:
//   - *RunReport: the completed report. Nil on error.
//   - error: ErrNoChain, context error, a worker's serialization
//     error, or the failing chain error.
func (r *Runner) Run(ctx context.Context, scenarioID string, chain *metric.Chain, batches <-chan metric.Batch) (*RunReport, error) {
	if chain == nil {
		return nil, ErrNoChain
	}

	tracer := otel.Tracer(tracerName)
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "evalledger.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.scenario", scenarioID),
	)

	started := time.Now().UTC()
	if r.metrics != nil {
		r.metrics.ActiveRuns.Inc()
		defer r.metrics.ActiveRuns.Dec()
	}

	workers := r.workers
	if workers < 1 {
		workers = 1
	}
	r.logger.Info("run started",
		slog.String("run_id", runID),
		slog.String("scenario", scenarioID),
		slog.Int("workers", workers),
	)

	// Batch-hashing pool. Each worker owns one accumulator; merging
	// them afterwards is equivalent to one accumulator fed every batch,
	// so the worker count never changes the digest.
	g, gctx := errgroup.WithContext(ctx)
	hashCh := make(chan metric.Batch, workers)
	workerAccs := make([]*fingerprint.Accumulator, workers)
	for w := 0; w < workers; w++ {
		acc := fingerprint.New()
		workerAccs[w] = acc
		g.Go(func() error {
			for batch := range hashCh {
				raw, err := fingerprint.CanonicalBytes(map[string]any(batch))
				if err != nil {
					return fmt.Errorf("canonicalize batch: %w", err)
				}
				acc.Update(raw)
			}
			return nil
		})
	}

	count := 0
	var loopErr error
	var loopStage string
recv:
	for {
		var (
			batch metric.Batch
			ok    bool
		)
		select {
		case <-gctx.Done():
			loopErr = fmt.Errorf("run %s aborted: %w", runID, gctx.Err())
			loopStage = "input"
			break recv
		case batch, ok = <-batches:
		}
		if !ok {
			break recv
		}
		select {
		case hashCh <- batch:
		case <-gctx.Done():
			loopErr = fmt.Errorf("run %s aborted: %w", runID, gctx.Err())
			loopStage = "input"
			break recv
		}
		if err := chain.Update(batch); err != nil {
			loopErr = fmt.Errorf("run %s batch %d: %w", runID, count, err)
			loopStage = "update"
			r.logger.Error("batch update failed",
				slog.String("run_id", runID),
				slog.Int("batch", count),
				slog.String("error", err.Error()),
			)
			break recv
		}
		count++
		if r.metrics != nil {
			r.metrics.BatchesTotal.WithLabelValues("chain", "success").Inc()
		}
	}

	close(hashCh)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		// A worker's serialization failure is the root cause; the loop
		// only saw the secondary cancellation.
		r.observeRun(started, "error", "input")
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if loopErr != nil {
		r.observeRun(started, "error", loopStage)
		return nil, loopErr
	}

	closeStart := time.Now()
	results, err := chain.Close()
	if err != nil {
		r.observeRun(started, "error", "close")
		return nil, fmt.Errorf("run %s close: %w", runID, err)
	}
	if r.metrics != nil {
		r.metrics.CloseDurationSeconds.Observe(time.Since(closeStart).Seconds())
	}

	merged := fingerprint.New()
	for _, acc := range workerAccs {
		merged.Merge(acc)
	}
	if r.metrics != nil {
		for name, n := range chain.RecordCounts() {
			r.metrics.RecordsHashedTotal.WithLabelValues(name).Add(float64(n))
		}
		r.metrics.RecordsHashedTotal.WithLabelValues("run_batches").Add(float64(merged.Count()))
	}

	report := &RunReport{
		RunID:       runID,
		ScenarioID:  scenarioID,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Batches:     count,
		Results:     results,
		BatchDigest: merged.Digest(),
	}
	r.observeRun(started, "success", "")
	r.logger.Info("run finished",
		slog.String("run_id", runID),
		slog.Int("batches", count),
		slog.Int("facets", len(report.Fingerprints())),
	)
	return report, nil
}

func (r *Runner) observeRun(started time.Time, status, stage string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RunDurationSeconds.WithLabelValues(status).Observe(time.Since(started).Seconds())
	if stage != "" {
		r.metrics.ErrorsTotal.WithLabelValues(stage).Inc()
	}
}

// VerifyFanIn folds records into per-worker accumulators in parallel and
// merges them.
//
// Description:
//
//	This is the supported multi-worker pattern from the concurrency
//	contract: each worker independently canonical-serializes and hashes
//	its share of the records into a private accumulator, and the final
//	digest comes from merging the accumulators with the same
//	commutative operation the accumulator itself uses. The result is
//	identical to a single accumulator fed all records sequentially.
//
// Inputs:
//   - ctx: cancels outstanding workers.
//   - records: the record values to fold; any CanonicalBytes-supported
//     shape.
//   - workers: worker count; values < 1 use GOMAXPROCS.
//
// Outputs:
//   - string: the merged digest.
//   - error: serialization failure or context cancellation.
func VerifyFanIn(ctx context.Context, records []any, workers int) (string, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(records) && len(records) > 0 {
		workers = len(records)
	}

	accs := make([]*fingerprint.Accumulator, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		acc := fingerprint.New()
		accs[w] = acc
		start := w
		g.Go(func() error {
			for i := start; i < len(records); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				raw, err := fingerprint.CanonicalBytes(records[i])
				if err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				acc.Update(raw)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	merged := fingerprint.New()
	for _, acc := range accs {
		merged.Merge(acc)
	}
	return merged.Digest(), nil
}

// CompareReports diffs the fingerprints of two runs facet by facet.
//
// Description:
//
//	Returns the names of facets whose digests differ, plus facets
//	present in only one report. Equal fingerprints on a facet mean both
//	runs scored the same record multiset for that facet, regardless of
//	ordering or batching. When both reports carry a batch digest and
//	the digests differ, the synthetic "batches" facet is included: the
//	runs consumed different input, not just scored it differently.
//
// Outputs:
//   - []string: sorted divergent facet names. Empty when the runs saw
//     identical data on every shared facet.
func CompareReports(a, b *RunReport) []string {
	divergent := make([]string, 0)
	if a.BatchDigest != "" && b.BatchDigest != "" && a.BatchDigest != b.BatchDigest {
		divergent = append(divergent, "batches")
	}
	fa, fb := a.Fingerprints(), b.Fingerprints()
	for name, da := range fa {
		db, ok := fb[name]
		if !ok || da != db {
			divergent = append(divergent, name)
		}
	}
	for name := range fb {
		if _, ok := fa[name]; !ok {
			divergent = append(divergent, name)
		}
	}
	sort.Strings(divergent)
	return divergent
}
