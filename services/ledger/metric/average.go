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

// Average reports the mean of a numeric per-record field.
//
// The metric is named "<key>_avg" so several Average instances over
// different keys can share one chain without colliding. Records are
// hashed incrementally at update time.
type Average struct {
	Base
	key   string
	sum   float64
	count int
}

// NewAverage creates an average metric over the given batch key.
func NewAverage(key string) *Average {
	if key == "" {
		key = "score"
	}
	return &Average{Base: NewBase(key + "_avg"), key: key}
}

// Update consumes one batch of numeric values.
func (m *Average) Update(batch Batch) error {
	release, err := m.Begin()
	if err != nil {
		return err
	}
	defer release()

	if err := CheckBatch(batch); err != nil {
		return err
	}
	values, err := floatSlice(batch, m.key)
	if err != nil {
		return err
	}
	for _, v := range values {
		m.sum += v
		if err := m.RecordForFingerprint(v); err != nil {
			return err
		}
	}
	m.count += len(values)
	return nil
}

// Close returns {"<key>_avg": mean} plus the fingerprint. Zero updates
// yield a mean of 0.
func (m *Average) Close() (Result, error) {
	release, err := m.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	res := m.FinishClose()
	mean := 0.0
	if m.count > 0 {
		mean = m.sum / float64(m.count)
	}
	res[m.Name()] = mean
	return res, nil
}
