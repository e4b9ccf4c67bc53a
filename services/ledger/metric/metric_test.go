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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EvalLedger/services/ledger/fingerprint"
)

func TestAccuracy_Update(t *testing.T) {
	t.Run("computes ratio over batches", func(t *testing.T) {
		m := NewAccuracy("", "")
		require.NoError(t, m.Update(Batch{
			"label":      []int{1, 0, 1},
			"prediction": []int{1, 1, 1},
		}))
		require.NoError(t, m.Update(Batch{
			"label":      []int{0},
			"prediction": []int{0},
		}))

		res, err := m.Close()
		require.NoError(t, err)
		assert.InDelta(t, 0.75, res["accuracy"], 1e-9)
	})

	t.Run("nil batch is a contract error", func(t *testing.T) {
		m := NewAccuracy("", "")
		err := m.Update(nil)
		assert.ErrorIs(t, err, ErrContract)
	})

	t.Run("missing key is a contract error", func(t *testing.T) {
		m := NewAccuracy("", "")
		err := m.Update(Batch{"label": []int{1}})
		assert.ErrorIs(t, err, ErrContract)
	})

	t.Run("length mismatch is a contract error", func(t *testing.T) {
		m := NewAccuracy("", "")
		err := m.Update(Batch{
			"label":      []int{1, 2},
			"prediction": []int{1},
		})
		assert.ErrorIs(t, err, ErrContract)
	})

	t.Run("json-decoded batches are accepted", func(t *testing.T) {
		m := NewAccuracy("", "")
		err := m.Update(Batch{
			"label":      []any{float64(1), float64(0)},
			"prediction": []any{float64(1), float64(0)},
		})
		require.NoError(t, err)
		res, err := m.Close()
		require.NoError(t, err)
		assert.InDelta(t, 1.0, res["accuracy"], 1e-9)
	})
}

func TestLifecycle(t *testing.T) {
	t.Run("update after close fails", func(t *testing.T) {
		m := NewAccuracy("", "")
		_, err := m.Close()
		require.NoError(t, err)

		err = m.Update(Batch{"label": []int{1}, "prediction": []int{1}})
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("double close fails", func(t *testing.T) {
		m := NewAverage("score")
		_, err := m.Close()
		require.NoError(t, err)

		_, err = m.Close()
		assert.ErrorIs(t, err, ErrClosed)

		// Repeating yields the same error, not a different state.
		_, err = m.Close()
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("close with zero updates returns defaults", func(t *testing.T) {
		m := NewAccuracy("", "")
		res, err := m.Close()
		require.NoError(t, err)
		assert.Equal(t, 0.0, res["accuracy"])

		digest, ok := res[HashValueKey("accuracy")].(string)
		require.True(t, ok)
		require.NoError(t, fingerprint.ValidateDigest(digest))
		assert.Equal(t, fingerprint.New().Digest(), digest, "zero updates means empty-multiset fingerprint")
	})
}

func TestFingerprint_OrderIndependenceAcrossBatching(t *testing.T) {
	// The same multiset of records, fed in different orders and batch
	// groupings, must yield identical fingerprints.
	close1 := func() Result {
		m := NewAccuracy("", "")
		require.NoError(t, m.Update(Batch{"label": []int{1, 0}, "prediction": []int{1, 1}}))
		require.NoError(t, m.Update(Batch{"label": []int{2}, "prediction": []int{2}}))
		res, err := m.Close()
		require.NoError(t, err)
		return res
	}()
	close2 := func() Result {
		m := NewAccuracy("", "")
		require.NoError(t, m.Update(Batch{"label": []int{2}, "prediction": []int{2}}))
		require.NoError(t, m.Update(Batch{"label": []int{0}, "prediction": []int{1}}))
		require.NoError(t, m.Update(Batch{"label": []int{1}, "prediction": []int{1}}))
		res, err := m.Close()
		require.NoError(t, err)
		return res
	}()

	key := HashValueKey("accuracy")
	assert.Equal(t, close1[key], close2[key])
	assert.Equal(t, close1["accuracy"], close2["accuracy"])
}

func TestFingerprint_DivergentDataDiverges(t *testing.T) {
	run := func(labels []int) string {
		m := NewAccuracy("", "")
		preds := make([]int, len(labels))
		copy(preds, labels)
		require.NoError(t, m.Update(Batch{"label": labels, "prediction": preds}))
		res, err := m.Close()
		require.NoError(t, err)
		return res[HashValueKey("accuracy")].(string)
	}

	assert.NotEqual(t, run([]int{1, 2, 3}), run([]int{1, 2}), "missing record must change the fingerprint")
	assert.NotEqual(t, run([]int{1, 2, 3}), run([]int{1, 2, 2, 3}), "duplicated record must change the fingerprint")
}

func TestAverage(t *testing.T) {
	m := NewAverage("ppl")
	require.NoError(t, m.Update(Batch{"ppl": []float64{2, 4}}))
	require.NoError(t, m.Update(Batch{"ppl": []float64{6}}))

	res, err := m.Close()
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res["ppl_avg"], 1e-9)
	assert.Contains(t, res, HashValueKey("ppl_avg"))
}

func TestRecorder(t *testing.T) {
	t.Run("emits recorded strings at close", func(t *testing.T) {
		m := NewRecorder("gen")
		require.NoError(t, m.Update(Batch{"gen": []string{"hello", "world"}}))
		require.NoError(t, m.Update(Batch{"gen": []string{"again"}}))

		res, err := m.Close()
		require.NoError(t, err)
		assert.Equal(t, []string{"hello", "world", "again"}, res["gen_recorder"])
	})

	t.Run("close-time hashing matches update-time hashing", func(t *testing.T) {
		// A recorder that hashes at close must produce the same digest
		// as an accumulator fed the same records up front.
		m := NewRecorder("gen")
		require.NoError(t, m.Update(Batch{"gen": []string{"hello", "world"}}))
		res, err := m.Close()
		require.NoError(t, err)

		want := fingerprint.New()
		for _, s := range []string{"hello", "world"} {
			raw, err := fingerprint.CanonicalBytes(s)
			require.NoError(t, err)
			want.Update(raw)
		}
		assert.Equal(t, want.Digest(), res[HashValueKey("gen_recorder")])
	})

	t.Run("wrong element type is a contract error", func(t *testing.T) {
		m := NewRecorder("gen")
		err := m.Update(Batch{"gen": []any{"ok", 3}})
		assert.ErrorIs(t, err, ErrContract)
		assert.False(t, errors.Is(err, ErrClosed))
	})
}
