// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package series

// Index is a dense paged map from blkOffset (a block ordinal, not a byte
// offset) to *Blk. Head advances on purge; tail advances on writer
// rollover. Block offsets are strictly contiguous between head and tail.
type Index struct {
	blocks []*Blk // blocks[i] has blkOffset = head+i
	head   uint64
}

// NewIndex returns an empty index.
func NewIndex() *Index { return &Index{} }

// Head returns the lowest live blkOffset.
func (ix *Index) Head() uint64 { return ix.head }

// Tail returns one past the highest live blkOffset (i.e. the next blkOffset
// a writer rollover will allocate).
func (ix *Index) Tail() uint64 { return ix.head + uint64(len(ix.blocks)) }

// Append adds a new block at the tail, returning its blkOffset.
func (ix *Index) Append(b *Blk) uint64 {
	blkOffset := ix.Tail()
	ix.blocks = append(ix.blocks, b)
	return blkOffset
}

// At returns the block for blkOffset, or nil if it is out of [head, tail).
func (ix *Index) At(blkOffset uint64) *Blk {
	if blkOffset < ix.head || blkOffset >= ix.Tail() {
		return nil
	}
	return ix.blocks[blkOffset-ix.head]
}

// Last returns the tail (most recently appended) block, or nil if empty.
func (ix *Index) Last() *Blk {
	if len(ix.blocks) == 0 {
		return nil
	}
	return ix.blocks[len(ix.blocks)-1]
}

// FindBySampleOffset binary-searches for the block whose [Offset,
// Offset+Count) range contains sampleOffset. Returns the blkOffset and true,
// or false if sampleOffset is past the tail.
func (ix *Index) FindBySampleOffset(sampleOffset uint64) (uint64, bool) {
	lo, hi := 0, len(ix.blocks)
	for lo < hi {
		mid := (lo + hi) / 2
		b := ix.blocks[mid]
		if sampleOffset < b.Offset {
			hi = mid
		} else if sampleOffset >= b.Offset+uint64(b.Count) {
			lo = mid + 1
		} else {
			return ix.head + uint64(mid), true
		}
	}
	if lo >= len(ix.blocks) {
		return 0, false
	}
	return ix.head + uint64(lo), true
}

// FindByLastValue binary-searches monotone (non-decreasing) int series by
// each block's LastValue, returning the first block whose LastValue >= v.
func (ix *Index) FindByLastValue(v int64) (uint64, bool) {
	lo, hi := 0, len(ix.blocks)
	for lo < hi {
		mid := (lo + hi) / 2
		if ix.blocks[mid].LastValue < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(ix.blocks) {
		return 0, false
	}
	return ix.head + uint64(lo), true
}

// Purge drops the index head up to but not including blkOffset, permanently
// discarding older blocks.
func (ix *Index) Purge(blkOffset uint64) {
	if blkOffset <= ix.head {
		return
	}
	if blkOffset >= ix.Tail() {
		ix.blocks = nil
		ix.head = blkOffset
		return
	}
	n := blkOffset - ix.head
	ix.blocks = ix.blocks[n:]
	ix.head = blkOffset
}
