// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package floatcodec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeAll(xs []float64) []byte {
	w := NewWriter()
	for _, v := range xs {
		w.Write(v)
	}
	w.Finish()
	return w.Bytes()
}

func decodeAll(buf []byte) []float64 {
	r := NewReader(buf)
	var out []float64
	for {
		v, ok := r.Read()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestRoundTripBitExact(t *testing.T) {
	xs := []float64{1.0, 1.0, 1.0000001, 1.0000002, 2.0, -3.5, 0.0, -0.0, 1e100, -1e-100}
	buf := encodeAll(xs)
	got := decodeAll(buf)
	require.Len(t, got, len(xs))
	for i := range xs {
		require.Equal(t, math.Float64bits(xs[i]), math.Float64bits(got[i]), "index %d", i)
	}
}

func TestIdenticalSamplesUseTag00(t *testing.T) {
	w := NewWriter()
	w.Write(5.5)
	w.Write(5.5)
	w.Finish()
	r := NewReader(w.Bytes())
	v1, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, 5.5, v1)
	v2, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, 5.5, v2)
}

func TestSeekMatchesSequentialRead(t *testing.T) {
	xs := []float64{1.0, 1.0, 1.0000001, 1.0000002, 2.0, 2.0, 7.25, -4.0}
	buf := encodeAll(xs)

	for k := 0; k <= len(xs); k++ {
		ra := NewReader(buf)
		ra.Seek(k)
		var byFeek []float64
		for {
			v, ok := ra.Read()
			if !ok {
				break
			}
			byFeek = append(byFeek, v)
		}

		rb := NewReader(buf)
		for i := 0; i < k; i++ {
			_, ok := rb.Read()
			require.True(t, ok)
		}
		var byRead []float64
		for {
			v, ok := rb.Read()
			if !ok {
				break
			}
			byRead = append(byRead, v)
		}
		require.Equal(t, byRead, byFeek, "mismatch at k=%d", k)
	}
}

func TestSearchRewindsPrevAndPrevLZ(t *testing.T) {
	xs := []float64{1.0, 1.0000001, 1.0000002, 5.0}
	buf := encodeAll(xs)

	r := NewReader(buf)
	found := r.Search(func(v float64) int {
		if v < 1.0000002 {
			return 1
		}
		return 0
	})
	require.True(t, found)
	v, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, 1.0000002, v)
	v2, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, 5.0, v2)
}
