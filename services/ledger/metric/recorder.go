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

// Recorder collects raw text records and emits them verbatim at close.
//
// Unlike the score metrics, Recorder defers fingerprint hashing to
// Close: the full recorded list is the relevant data, and it is only
// final once no more updates can arrive. This is the close-time hashing
// placement; both placements fold every scored record in before the
// digest is read.
type Recorder struct {
	Base
	key      string
	recorded []string
}

// NewRecorder creates a recorder over the given batch key. The result
// key is "<key>_recorder".
func NewRecorder(key string) *Recorder {
	if key == "" {
		key = "gen"
	}
	return &Recorder{Base: NewBase(key + "_recorder"), key: key}
}

// Update appends the batch's strings to the recorded list.
func (m *Recorder) Update(batch Batch) error {
	release, err := m.Begin()
	if err != nil {
		return err
	}
	defer release()

	if err := CheckBatch(batch); err != nil {
		return err
	}
	values, err := stringSlice(batch, m.key)
	if err != nil {
		return err
	}
	m.recorded = append(m.recorded, values...)
	return nil
}

// Close hashes every recorded string, then returns them under the
// metric name plus the fingerprint.
func (m *Recorder) Close() (Result, error) {
	release, err := m.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	for _, s := range m.recorded {
		if err := m.RecordForFingerprint(s); err != nil {
			return nil, err
		}
	}
	res := m.FinishClose()
	res[m.Name()] = m.recorded
	return res, nil
}
