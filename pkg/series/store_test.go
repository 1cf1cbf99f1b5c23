// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package series

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type memBackend struct {
	blocks map[string]map[uint64]*Blk
}

func newMemBackend() *memBackend {
	return &memBackend{blocks: make(map[string]map[uint64]*Blk)}
}

func (m *memBackend) LoadBlk(seriesID string, blkOffset uint64) (*Blk, error) {
	s, ok := m.blocks[seriesID]
	if !ok {
		return nil, ErrNotAvailable
	}
	b, ok := s[blkOffset]
	if !ok {
		return nil, ErrNotAvailable
	}
	return b, nil
}

func (m *memBackend) SaveBlk(seriesID string, blkOffset uint64, b *Blk) error {
	s, ok := m.blocks[seriesID]
	if !ok {
		s = make(map[uint64]*Blk)
		m.blocks[seriesID] = s
	}
	s[blkOffset] = b
	return nil
}

func TestIntSeriesRoundTrip(t *testing.T) {
	s := NewSeries("cpu.ticks", KindInt, false, 0, newMemBackend())
	w := NewWriter(s)
	vals := []int64{1, 2, 3, 5, 8, 13, 21, -7, 0, 9000000}
	for _, v := range vals {
		w.WriteInt(v)
	}
	w.Finish()

	r, err := NewReader(s)
	require.NoError(t, err)
	var got []int64
	for {
		v, ok := r.ReadInt()
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Equal(t, vals, got)
}

func TestFloatSeriesRoundTrip(t *testing.T) {
	s := NewSeries("temp.c", KindFloat, false, 0, newMemBackend())
	w := NewWriter(s)
	vals := []float64{1.0, 1.0, 1.0000001, 1.0000002, 2.0, -3.5}
	for _, v := range vals {
		w.WriteFloat(v)
	}
	w.Finish()

	r, err := NewReader(s)
	require.NoError(t, err)
	var got []float64
	for {
		v, ok := r.ReadFloat()
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Equal(t, vals, got)
}

func TestWriterRollsBlockAtSize(t *testing.T) {
	s := NewSeries("blk.roll", KindInt, false, 0, newMemBackend())
	w := NewWriter(s)
	// BlockSize is 4096; enough non-RLE-able values to force at least one roll.
	n := 3000
	for i := 0; i < n; i++ {
		w.WriteInt(int64(i*7 - 3))
	}
	w.Finish()

	require.Greater(t, s.index.Tail(), uint64(1), "expected more than one block")

	r, err := NewReader(s)
	require.NoError(t, err)
	count := 0
	var last int64
	for {
		v, ok := r.ReadInt()
		if !ok {
			break
		}
		require.Equal(t, int64(count*7-3), v)
		last = v
		count++
	}
	require.Equal(t, n, count)
	require.Equal(t, int64((n-1)*7-3), last)
}

func TestSeekAcrossBlocks(t *testing.T) {
	s := NewSeries("seek.int", KindInt, false, 0, newMemBackend())
	w := NewWriter(s)
	n := 2500
	for i := 0; i < n; i++ {
		w.WriteInt(int64(i*3 + 1))
	}
	w.Finish()

	for _, offset := range []uint64{0, 1, 500, 1999, 2000, uint64(n - 1)} {
		r, err := NewReader(s)
		require.NoError(t, err)
		require.NoError(t, r.Seek(offset))
		v, ok := r.ReadInt()
		require.True(t, ok, "offset %d", offset)
		require.Equal(t, int64(offset)*3+1, v)
	}
}

func TestFindOnMonotoneSeries(t *testing.T) {
	s := NewSeries("monotone", KindInt, false, 0, newMemBackend())
	w := NewWriter(s)
	n := 3000
	for i := 0; i < n; i++ {
		w.WriteInt(int64(i * 2))
	}
	w.Finish()

	r, err := NewReader(s)
	require.NoError(t, err)
	require.NoError(t, r.Find(4001))
	v, ok := r.ReadInt()
	require.True(t, ok)
	require.Equal(t, int64(4002), v)
}

func TestFindOnDeltaSeries(t *testing.T) {
	s := NewSeries("monotone.delta", KindInt, true, 0, newMemBackend())
	w := NewWriter(s)
	n := 500
	for i := 0; i < n; i++ {
		w.WriteInt(int64(i * 5))
	}
	w.Finish()

	r, err := NewReader(s)
	require.NoError(t, err)
	require.NoError(t, r.Find(1001))
	v, ok := r.ReadInt()
	require.True(t, ok)
	require.Equal(t, int64(1005), v)
	v2, ok := r.ReadInt()
	require.True(t, ok)
	require.Equal(t, int64(1010), v2)
}

func TestPurgeDropsHeadBlocks(t *testing.T) {
	s := NewSeries("purge.int", KindInt, false, 0, newMemBackend())
	w := NewWriter(s)
	n := 3000
	for i := 0; i < n; i++ {
		w.WriteInt(int64(i))
	}
	w.Finish()

	tail := s.index.Tail()
	require.Greater(t, tail, uint64(1))
	s.Purge(tail - 1)
	require.Equal(t, tail-1, s.index.Head())

	require.Nil(t, s.index.At(0))
	require.NotNil(t, s.index.At(tail-1))
}

func TestBackendLoadOnPurgedBlock(t *testing.T) {
	backend := newMemBackend()
	s := NewSeries("backend.int", KindInt, false, 0, backend)
	w := NewWriter(s)
	n := 3000
	for i := 0; i < n; i++ {
		w.WriteInt(int64(i))
	}
	w.Finish()

	tail := s.index.Tail()
	require.Greater(t, tail, uint64(1))
	s.Purge(tail - 1)

	// block 0 was purged from the in-memory index but persisted via backend.
	b, err := backend.LoadBlk("backend.int", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), b.Offset)
}
