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
	"log/slog"
	"sync"
)

// Chain composes multiple metrics so they behave as one.
//
// Description:
//
//	Update broadcasts the identical batch to every registered child in
//	registration order; Close closes every child in the same order and
//	merges their result mappings. Each child keeps its own fingerprint,
//	scoped to exactly the records it consumed, so a caller comparing
//	two runs can tell which specific facet saw divergent data. The
//	chain itself never combines child fingerprints.
//
//	The chain owns its children exclusively: callers must not Update or
//	Close a child directly after adding it.
//
// Thread Safety: safe for concurrent use; see the package note on the
// single-logical-writer assumption.
type Chain struct {
	mu       sync.Mutex
	closed   bool
	children []Metric
	logger   *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainLogger sets the logger used for merge-collision warnings.
func WithChainLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain creates an empty chain.
//
// Outputs:
//   - *Chain: the new chain, open, with no children. Never nil.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns "chain".
func (c *Chain) Name() string {
	return "chain"
}

// Add registers a child metric.
//
// Description:
//
//	Registration order is preserved and determines both update fan-out
//	order and close-merge order.
//
// Inputs:
//   - m: the child. Must not be nil.
//
// Outputs:
//   - error: ErrContract for a nil child, ErrClosed after Close.
func (c *Chain) Add(m Metric) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: chain", ErrClosed)
	}
	if m == nil {
		return fmt.Errorf("%w: metric must not be nil", ErrContract)
	}
	c.children = append(c.children, m)
	return nil
}

// Len returns the number of registered children.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.children)
}

// RecordCounts reports how many records each child has folded so far.
//
// Description:
//
//	Children expose their counts through a RecordCount method; those
//	that do not (custom Metric implementations without one) are
//	omitted. Keys are child names, so siblings sharing a name collapse
//	to the later child's count. Callable before or after Close.
//
// Outputs:
//   - map[string]uint64: per-child folded-record counts. Never nil.
func (c *Chain) RecordCounts() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]uint64, len(c.children))
	for _, child := range c.children {
		counter, ok := child.(interface{ RecordCount() uint64 })
		if !ok {
			continue
		}
		counts[child.Name()] = counter.RecordCount()
	}
	return counts
}

// Update broadcasts the batch to every child in registration order.
//
// Description:
//
//	The first child error aborts the call and propagates immediately.
//	Children earlier in registration order have already consumed the
//	batch at that point; there is no rollback. A chain that has
//	returned an error mid-update should be discarded, not reused.
//
// Inputs:
//   - batch: forwarded as-is to each child.
//
// Outputs:
//   - error: ErrClosed, ErrContract, or the failing child's error
//     wrapped with the child name.
func (c *Chain) Update(batch Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: chain", ErrClosed)
	}
	if err := CheckBatch(batch); err != nil {
		return err
	}
	for _, child := range c.children {
		if err := child.Update(batch); err != nil {
			return fmt.Errorf("metric %q: %w", child.Name(), err)
		}
	}
	return nil
}

// Close closes every child in registration order and merges results.
//
// Description:
//
//	Merge policy is last-write-wins: when two children emit the same
//	key, the later-registered child's value survives. Collisions are
//	logged at warn level so the loss is observable; callers that need
//	both values intact must give sibling metrics distinct names. The
//	chain transitions to closed before the children do, so a failing
//	child leaves the chain closed and the later children unclosed.
//
// Outputs:
//   - Result: merged mapping from every child, empty for a childless
//     chain.
//   - error: ErrClosed on a second Close, or the failing child's error
//     wrapped with the child name.
func (c *Chain) Close() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: chain", ErrClosed)
	}
	c.closed = true

	merged := Result{}
	for _, child := range c.children {
		res, err := child.Close()
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", child.Name(), err)
		}
		for k, v := range res {
			if _, exists := merged[k]; exists {
				c.logger.Warn("result key collision, later metric wins",
					slog.String("key", k),
					slog.String("metric", child.Name()),
				)
			}
			merged[k] = v
		}
	}
	return merged, nil
}
