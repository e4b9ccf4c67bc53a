// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fingerprint provides an order-independent multiset digest over
// opaque byte records.
//
// # Description
//
// Two evaluation runs that fold the same multiset of records produce the
// same digest, no matter how the records were ordered, batched, or split
// across workers. The accumulator hashes each record with SHA-256 and
// folds the digest into fixed-size running state using lane-wise wrapping
// addition (additive hashing in the style of Bellare-Micali incremental
// hashing). Addition is commutative and associative, so arrival order is
// irrelevant; it is not idempotent, so multiplicity still matters:
// {A, A, B} and {A, B} diverge.
//
// XOR was rejected as the fold operation because it cancels duplicated
// records. Sorting all records before hashing was rejected because it
// needs O(n) memory; the accumulator state here is 40 bytes (four lane
// words plus the record count) regardless of how many records are
// folded.
//
// # Thread Safety
//
// Accumulator is NOT safe for concurrent use. Callers that fan records
// out to workers must give each worker its own Accumulator and combine
// them with Merge, or serialize access externally.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
)

// DigestLength is the length of a hex-encoded digest.
const DigestLength = 64

const numLanes = 4

var digestRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Accumulator maintains the running order-independent digest.
//
// The zero value is ready to use and represents the empty multiset.
type Accumulator struct {
	lanes [numLanes]uint64
	count uint64
}

// New creates an empty Accumulator.
//
// Outputs:
//   - *Accumulator: accumulator over the empty multiset. Never nil.
func New() *Accumulator {
	return &Accumulator{}
}

// Update folds one record into the running state.
//
// Description:
//
//	Hashes the record with SHA-256, splits the 32-byte digest into four
//	little-endian uint64 lanes, and adds each lane into the running
//	state with wrapping addition. Folding N records in any order yields
//	the same state. There is no bound on the number of calls and no
//	per-call allocation beyond the SHA-256 block.
//
// Inputs:
//   - record: canonical byte form of one record. May be empty; an empty
//     record still counts toward the multiset.
func (a *Accumulator) Update(record []byte) {
	sum := sha256.Sum256(record)
	for i := 0; i < numLanes; i++ {
		a.lanes[i] += binary.LittleEndian.Uint64(sum[i*8:])
	}
	a.count++
}

// Merge folds another accumulator's state into this one.
//
// Description:
//
//	Combining per-worker accumulators with Merge is equivalent to
//	feeding all of their records into a single accumulator. This is the
//	only supported way to fan in parallel workers; hashing concatenated
//	worker digests would reintroduce order dependence.
//
// Inputs:
//   - other: accumulator to absorb. A nil other is a no-op.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	for i := 0; i < numLanes; i++ {
		a.lanes[i] += other.lanes[i]
	}
	a.count += other.count
}

// Count returns the number of records folded so far.
func (a *Accumulator) Count() uint64 {
	return a.count
}

// Digest returns the current fingerprint as 64 lowercase hex characters.
//
// Description:
//
//	Pure read of the running state: calling Digest any number of times,
//	with no intervening Update, returns the same value and does not
//	perturb later updates. The digest of the empty multiset is the hex
//	encoding of the all-zero state.
//
// Outputs:
//   - string: 64-character lowercase hex digest.
func (a *Accumulator) Digest() string {
	var buf [numLanes * 8]byte
	for i := 0; i < numLanes; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], a.lanes[i])
	}
	return hex.EncodeToString(buf[:])
}

// ValidateDigest checks that s is a well-formed fingerprint digest.
//
// Inputs:
//   - s: the digest string to validate.
//
// Outputs:
//   - error: non-nil if s is empty or not 64 lowercase hex characters.
func ValidateDigest(s string) error {
	if s == "" {
		return fmt.Errorf("digest must not be empty")
	}
	if !digestRegex.MatchString(s) {
		return fmt.Errorf("invalid digest format: want %d lowercase hex characters, got %q", DigestLength, s)
	}
	return nil
}
