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
	"math"
)

// Batch extraction helpers. Batches arriving from Go callers carry typed
// slices; batches decoded from JSON carry []any with float64 numbers.
// Both shapes are accepted.

// intSlice extracts batch[key] as a []int.
func intSlice(batch Batch, key string) ([]int, error) {
	v, ok := batch[key]
	if !ok {
		return nil, fmt.Errorf("%w: batch missing key %q", ErrContract, key)
	}
	switch x := v.(type) {
	case []int:
		return x, nil
	case []int64:
		out := make([]int, len(x))
		for i, e := range x {
			out[i] = int(e)
		}
		return out, nil
	case []float64:
		out := make([]int, len(x))
		for i, e := range x {
			n, err := asInt(e)
			if err != nil {
				return nil, fmt.Errorf("%w: key %q index %d: %v", ErrContract, key, i, err)
			}
			out[i] = n
		}
		return out, nil
	case []any:
		out := make([]int, len(x))
		for i, e := range x {
			n, err := asInt(e)
			if err != nil {
				return nil, fmt.Errorf("%w: key %q index %d: %v", ErrContract, key, i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: key %q has type %T, want an int slice", ErrContract, key, v)
	}
}

// floatSlice extracts batch[key] as a []float64.
func floatSlice(batch Batch, key string) ([]float64, error) {
	v, ok := batch[key]
	if !ok {
		return nil, fmt.Errorf("%w: batch missing key %q", ErrContract, key)
	}
	switch x := v.(type) {
	case []float64:
		return x, nil
	case []int:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out, nil
	case []any:
		out := make([]float64, len(x))
		for i, e := range x {
			switch n := e.(type) {
			case float64:
				out[i] = n
			case int:
				out[i] = float64(n)
			default:
				return nil, fmt.Errorf("%w: key %q index %d has type %T, want a number", ErrContract, key, i, e)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: key %q has type %T, want a float slice", ErrContract, key, v)
	}
}

// stringSlice extracts batch[key] as a []string.
func stringSlice(batch Batch, key string) ([]string, error) {
	v, ok := batch[key]
	if !ok {
		return nil, fmt.Errorf("%w: batch missing key %q", ErrContract, key)
	}
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: key %q index %d has type %T, want string", ErrContract, key, i, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: key %q has type %T, want a string slice", ErrContract, key, v)
	}
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not integral", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("value has type %T, want int", v)
	}
}
