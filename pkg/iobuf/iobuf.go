// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package iobuf provides a reference-counted, relocatable byte buffer used
// for zero-copy handoff between the framing layer and the TLS send queue.
package iobuf

import "errors"

// ErrOverflow is returned when a requested operation would violate the
// skip+length<=size invariant.
var ErrOverflow = errors.New("[IOBUF]> would overflow buffer capacity")

// growthFactor is the minimum geometric growth applied on Reserve, matching
// the teacher's pooled-buffer growth policy (see pkg/metricstore/buffer.go).
const growthFactor = 1.125

// Buf is a reference-counted byte buffer with independent head/tail room.
// Invariant: skip+length <= size == len(data).
type Buf struct {
	data  []byte
	skip  int
	length int
	refs  int32
}

// Alloc allocates a new buffer with capacity n.
func Alloc(n int) *Buf {
	return &Buf{data: make([]byte, n), refs: 1}
}

// FromBytes wraps an existing slice without copying; the Buf takes ownership.
func FromBytes(b []byte) *Buf {
	return &Buf{data: b, length: len(b), refs: 1}
}

// Size returns total capacity.
func (b *Buf) Size() int { return len(b.data) }

// Length returns the payload length.
func (b *Buf) Length() int { return b.length }

// Skip returns the head offset.
func (b *Buf) Skip() int { return b.skip }

// Bytes returns the payload view (skip..skip+length), no copy.
func (b *Buf) Bytes() []byte { return b.data[b.skip : b.skip+b.length] }

// Ref increments the reference count; callers sharing a Buf across the TLS
// send queue and a retry path must Ref/Unref symmetrically.
func (b *Buf) Ref() *Buf {
	b.refs++
	return b
}

// Unref decrements the reference count. Returns true if this was the last
// reference (the caller may now recycle data).
func (b *Buf) Unref() bool {
	b.refs--
	return b.refs <= 0
}

// Reserve ensures at least n bytes of trailing room are available, growing
// geometrically (>=12.5%) and preserving both the leading and trailing
// in-use regions.
func (b *Buf) Reserve(n int) {
	need := b.skip + b.length + n
	if need <= len(b.data) {
		return
	}
	newSize := len(b.data)
	if newSize == 0 {
		newSize = n
	}
	for newSize < need {
		grown := int(float64(newSize) * growthFactor)
		if grown <= newSize {
			grown = newSize + n
		}
		newSize = grown
	}
	nd := make([]byte, newSize)
	copy(nd, b.data[:b.skip+b.length])
	b.data = nd
}

// Prepend grows head room by n bytes, shifting the payload forward so that
// n bytes before the payload become available for a header to be written
// into. Returns the byte slice of the new head room.
func (b *Buf) Prepend(n int) []byte {
	if b.skip >= n {
		b.skip -= n
		b.length += n
		return b.data[b.skip : b.skip+n]
	}
	// Not enough head room: reallocate, shifting payload to leave n bytes free.
	total := n + b.length
	nd := make([]byte, total+cap(b.data)-b.skip-b.length)
	copy(nd[n:], b.Bytes())
	b.data = nd
	b.skip = 0
	b.length = total
	return b.data[0:n]
}

// Append appends bytes to the payload tail, growing as needed.
func (b *Buf) Append(p []byte) {
	b.Reserve(len(p))
	copy(b.data[b.skip+b.length:], p)
	b.length += len(p)
}

// Consume drops n bytes from the front of the payload (after a partial
// read/dispatch), advancing skip.
func (b *Buf) Consume(n int) error {
	if n > b.length {
		return ErrOverflow
	}
	b.skip += n
	b.length -= n
	return nil
}

// Detach hands off ownership of the backing slice, e.g. to the TLS layer for
// a zero-copy send. The Buf must not be used again afterwards.
func (b *Buf) Detach() []byte {
	out := b.Bytes()
	b.data = nil
	b.skip, b.length = 0, 0
	return out
}

// Reset empties the buffer for reuse (e.g. returning to a pool).
func (b *Buf) Reset() {
	b.skip = 0
	b.length = 0
}
