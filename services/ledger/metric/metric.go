// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metric

import (
	"fmt"
	"sync"

	"github.com/AleutianAI/EvalLedger/services/ledger/fingerprint"
)

// Batch is one batch of named, per-record-iterable input fields.
//
// The dataloader is trusted to have validated shapes and vocabulary;
// a metric only requires that the keys it declared exist and carry the
// element type it expects.
type Batch map[string]any

// Result maps metric-name keys to computed values. Values are scalars
// for score metrics or nested structures for recorder-style metrics.
type Result map[string]any

// Metric is the capability set every evaluator exposes.
//
// Lifecycle: Open --Update--> Open, Open --Close--> Closed,
// Closed --Update|Close--> ErrClosed. There is no transition out of
// Closed.
type Metric interface {
	// Name returns a stable identifier, lowercase underscore-separated,
	// suitable for result keys and metric labels.
	Name() string

	// Update folds one batch into the running statistic and the
	// fingerprint. Returns ErrClosed after Close, ErrContract for
	// malformed batches.
	Update(batch Batch) error

	// Close finalizes the metric and returns its results, including the
	// fingerprint under HashValueKey(Name()). Exactly one Close call
	// succeeds; later calls return ErrClosed.
	Close() (Result, error)
}

// HashValueKey returns the reserved result key under which a metric
// publishes its fingerprint digest.
func HashValueKey(name string) string {
	return name + "_hashvalue"
}

// Base carries the shared lifecycle and fingerprint state for metrics.
//
// Description:
//
//	Concrete metrics embed Base and wrap their Update/Close bodies in
//	Begin/release. The mutex guarantees that the running statistic and
//	the accumulator mutate as one unit per call, which is what makes
//	multi-worker fan-in onto a single metric safe.
//
// Thread Safety: safe for concurrent use via Begin.
type Base struct {
	name string
	mu   sync.Mutex
	// closed is guarded by mu. Once true it never resets.
	closed bool
	acc    *fingerprint.Accumulator
}

// NewBase creates the shared state for a metric with the given name.
func NewBase(name string) Base {
	return Base{name: name, acc: fingerprint.New()}
}

// Name returns the metric name.
func (b *Base) Name() string {
	return b.name
}

// Begin acquires the state lock and verifies the metric is open.
//
// Outputs:
//   - func(): release function; call it (usually deferred) when the
//     operation is done. Nil when an error is returned.
//   - error: ErrClosed if the metric has been closed. No lock is held
//     on error.
func (b *Base) Begin() (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrClosed, b.name)
	}
	return b.mu.Unlock, nil
}

// CheckBatch validates the batch argument itself.
//
// A nil batch is the one mapping-shape violation the type system cannot
// rule out.
func CheckBatch(batch Batch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch must not be nil", ErrContract)
	}
	return nil
}

// RecordForFingerprint canonically serializes each item and folds it
// into the accumulator.
//
// Description:
//
//	Each item is one semantically-relevant record extracted from a
//	batch. Metrics call this either during Update (incremental hashing)
//	or once during Close (for metrics whose relevant data is only fully
//	known at close time); both placements are valid as long as every
//	record that contributes to the score is folded in before the digest
//	is read. Callers must hold the lock via Begin.
//
// Inputs:
//   - items: record values; see fingerprint.CanonicalBytes for the
//     supported shapes.
//
// Outputs:
//   - error: ErrContract-wrapped serialization failure. Items preceding
//     the failing one have already been folded in.
func (b *Base) RecordForFingerprint(items ...any) error {
	for _, item := range items {
		raw, err := fingerprint.CanonicalBytes(item)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrContract, err)
		}
		b.acc.Update(raw)
	}
	return nil
}

// Fingerprint returns the current digest. Callers must hold the lock
// via Begin when updates may be in flight.
func (b *Base) Fingerprint() string {
	return b.acc.Digest()
}

// RecordCount returns the number of records folded so far.
func (b *Base) RecordCount() uint64 {
	return b.acc.Count()
}

// FinishClose transitions the metric to closed and seeds its result.
//
// Description:
//
//	Marks the metric permanently closed and returns a Result already
//	containing the fingerprint under HashValueKey(name). Concrete
//	metrics add their scores to the returned map. Callers must hold the
//	lock via Begin; the Begin/FinishClose pair is what makes a second
//	Close fail with ErrClosed rather than double-count.
func (b *Base) FinishClose() Result {
	b.closed = true
	return Result{HashValueKey(b.name): b.acc.Digest()}
}
