// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates evaluation run scenarios.
//
// A scenario is a YAML file describing which metrics to stack into the
// chain, where batches come from, and how many preprocessing workers to
// use. The scenario is the single source of truth for reproducing a run:
// two runs over the same scenario and the same data multiset must report
// identical fingerprints.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/EvalLedger/services/ledger/metric"
)

// Sentinel errors for scenario validation.
var (
	// ErrInvalidScenario is returned when a scenario fails validation.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrUnknownMetric is returned for an unrecognized metric type.
	ErrUnknownMetric = errors.New("unknown metric type")
)

// Metric types accepted in scenario files.
const (
	MetricAccuracy = "accuracy"
	MetricAverage  = "average"
	MetricRecorder = "recorder"
)

// ScenarioMetadata tracks the identity of the run being configured.
type ScenarioMetadata struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	Author      string `yaml:"author" json:"author"`
	Created     string `yaml:"created" json:"created"`
}

// MetricSpec configures one metric in the chain.
type MetricSpec struct {
	// Type is one of accuracy, average, recorder.
	Type string `yaml:"type" json:"type"`

	// Key is the batch key for average and recorder metrics.
	Key string `yaml:"key" json:"key"`

	// LabelKey and PredictionKey configure accuracy metrics.
	// Empty values fall back to the metric package defaults.
	LabelKey      string `yaml:"label_key" json:"label_key"`
	PredictionKey string `yaml:"prediction_key" json:"prediction_key"`
}

// RunScenario is the full scenario file.
type RunScenario struct {
	Metadata ScenarioMetadata `yaml:"metadata" json:"metadata"`

	Run struct {
		// Workers is the number of parallel batch-hashing workers the
		// runner uses. Zero means single-threaded.
		Workers int `yaml:"workers" json:"workers"`

		// StorePath is the BadgerDB directory for report persistence.
		// Empty disables persistence.
		StorePath string `yaml:"store_path" json:"store_path"`
	} `yaml:"run" json:"run"`

	Metrics []MetricSpec `yaml:"metrics" json:"metrics"`
}

// Load reads and validates a scenario file.
//
// Inputs:
//   - path: the scenario YAML file.
//
// Outputs:
//   - *RunScenario: the parsed scenario. Nil on error.
//   - error: read, parse, or validation failure.
func Load(path string) (*RunScenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates scenario bytes.
func Parse(raw []byte) (*RunScenario, error) {
	var s RunScenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario is well-formed.
//
// Outputs:
//   - error: ErrInvalidScenario or ErrUnknownMetric with detail.
func (s *RunScenario) Validate() error {
	if s.Metadata.ID == "" {
		return fmt.Errorf("%w: metadata.id is required", ErrInvalidScenario)
	}
	if len(s.Metrics) == 0 {
		return fmt.Errorf("%w: at least one metric is required", ErrInvalidScenario)
	}
	if s.Run.Workers < 0 {
		return fmt.Errorf("%w: run.workers must not be negative", ErrInvalidScenario)
	}
	for i, spec := range s.Metrics {
		switch spec.Type {
		case MetricAccuracy:
			// Keys are optional; defaults apply.
		case MetricAverage, MetricRecorder:
			if spec.Key == "" {
				return fmt.Errorf("%w: metrics[%d] (%s) requires key", ErrInvalidScenario, i, spec.Type)
			}
		default:
			return fmt.Errorf("%w: metrics[%d] has type %q", ErrUnknownMetric, i, spec.Type)
		}
	}
	return nil
}

// BuildChain constructs the metric chain the scenario describes.
//
// Description:
//
//	Metrics are added in scenario order, which fixes both fan-out order
//	and the last-write-wins merge precedence at close.
//
// Outputs:
//   - *metric.Chain: open chain ready for updates. Nil on error.
//   - error: ErrUnknownMetric for specs Validate would also reject.
func (s *RunScenario) BuildChain(opts ...metric.ChainOption) (*metric.Chain, error) {
	chain := metric.NewChain(opts...)
	for i, spec := range s.Metrics {
		var m metric.Metric
		switch spec.Type {
		case MetricAccuracy:
			m = metric.NewAccuracy(spec.LabelKey, spec.PredictionKey)
		case MetricAverage:
			m = metric.NewAverage(spec.Key)
		case MetricRecorder:
			m = metric.NewRecorder(spec.Key)
		default:
			return nil, fmt.Errorf("%w: metrics[%d] has type %q", ErrUnknownMetric, i, spec.Type)
		}
		if err := chain.Add(m); err != nil {
			return nil, err
		}
	}
	return chain, nil
}
