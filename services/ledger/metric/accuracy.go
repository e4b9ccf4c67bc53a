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

import "fmt"

// DefaultLabelKey is the batch key for reference labels.
const DefaultLabelKey = "label"

// DefaultPredictionKey is the batch key for model predictions.
const DefaultPredictionKey = "prediction"

// Accuracy scores the fraction of predictions matching their labels.
//
// Each (label, prediction) pair is one record for fingerprint purposes
// and is hashed incrementally at update time.
type Accuracy struct {
	Base
	labelKey      string
	predictionKey string
	correct       int
	total         int
}

// NewAccuracy creates an accuracy metric reading labelKey and
// predictionKey from each batch. Empty keys fall back to the defaults.
func NewAccuracy(labelKey, predictionKey string) *Accuracy {
	if labelKey == "" {
		labelKey = DefaultLabelKey
	}
	if predictionKey == "" {
		predictionKey = DefaultPredictionKey
	}
	return &Accuracy{
		Base:          NewBase("accuracy"),
		labelKey:      labelKey,
		predictionKey: predictionKey,
	}
}

// Update consumes one batch of labels and predictions.
//
// Inputs:
//   - batch: must carry int slices of equal length under the label and
//     prediction keys.
//
// Outputs:
//   - error: ErrClosed after Close; ErrContract for a nil batch,
//     missing keys, non-int elements, or length mismatch.
func (m *Accuracy) Update(batch Batch) error {
	release, err := m.Begin()
	if err != nil {
		return err
	}
	defer release()

	if err := CheckBatch(batch); err != nil {
		return err
	}
	labels, err := intSlice(batch, m.labelKey)
	if err != nil {
		return err
	}
	preds, err := intSlice(batch, m.predictionKey)
	if err != nil {
		return err
	}
	if len(labels) != len(preds) {
		return fmt.Errorf("%w: %q has %d entries but %q has %d",
			ErrContract, m.labelKey, len(labels), m.predictionKey, len(preds))
	}

	for i := range labels {
		if labels[i] == preds[i] {
			m.correct++
		}
		if err := m.RecordForFingerprint([]any{labels[i], preds[i]}); err != nil {
			return err
		}
	}
	m.total += len(labels)
	return nil
}

// Close returns {"accuracy": ratio} plus the fingerprint.
//
// A metric closed with zero updates reports an accuracy of 0 and the
// empty-multiset fingerprint.
func (m *Accuracy) Close() (Result, error) {
	release, err := m.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	res := m.FinishClose()
	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.correct) / float64(m.total)
	}
	res["accuracy"] = ratio
	return res, nil
}
