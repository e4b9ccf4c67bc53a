// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metric implements stackable evaluators with order-independent
// integrity fingerprints.
//
// # Description
//
// A Metric consumes batches of pre-validated records, maintains a running
// statistic, and folds a canonical serialization of every record it
// consumes into a fingerprint accumulator. Closing a metric returns its
// result mapping, including the fingerprint under a reserved
// "<name>_hashvalue" key, so two runs can be compared post hoc: equal
// fingerprints mean both runs scored the same multiset of records, no
// matter how the records were ordered or batched.
//
// Metrics follow a strict lifecycle: created open, updated any number of
// times, closed exactly once. Any call after Close fails with ErrClosed.
// A Chain composes several metrics behind the same lifecycle.
//
// # Thread Safety
//
// Base-derived metrics and Chain serialize Update/Close internally, and
// each call mutates the running statistic and the fingerprint as a unit.
// The intended usage is still a single logical writer; concurrent callers
// get mutual exclusion, not any particular interleaving.
package metric

import "errors"

// Sentinel errors for metric lifecycle and contract violations.
var (
	// ErrClosed is returned when Update or Close is called on a metric
	// that has already been closed. The call is fatal to itself and
	// repeatable only in the sense that it fails the same way again.
	ErrClosed = errors.New("metric already closed")

	// ErrContract is returned when an argument violates the metric's
	// input contract: a nil batch, a missing batch key, a wrongly typed
	// batch value, mismatched field lengths, or a nil metric passed to
	// Chain.Add. It indicates a programming error, not a transient
	// condition.
	ErrContract = errors.New("metric contract violation")
)
