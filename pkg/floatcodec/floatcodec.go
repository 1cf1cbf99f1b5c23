// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package floatcodec implements the Chimp128-style float series codec
// (spec §4.3): each sample is XOR-ed against the previous one, classified
// by a 2-bit tag, and packed as a bitstream.
package floatcodec

import (
	"math"
	"math/bits"
)

// lzTable maps a 3-bit leading-zero index to the rounded leading-zero count.
var lzTable = [8]uint{0, 8, 12, 16, 18, 20, 22, 24}

func lzIndex(lz uint) uint {
	for i, v := range lzTable {
		if v == lz {
			return uint(i)
		}
	}
	return 7
}

// roundLZ rounds a raw leading-zero count down to one of lzTable's values.
func roundLZ(clz uint) uint {
	switch {
	case clz < 8:
		return 0
	case clz < 12:
		return 8
	case clz < 16:
		return 12
	case clz < 18:
		return 16
	case clz < 20:
		return 18
	case clz < 22:
		return 20
	case clz < 24:
		return 22
	default:
		return 24
	}
}

// Writer encodes a stream of float64 samples.
type Writer struct {
	bw      bitWriter
	prev    uint64
	prevLZ  uint
	started bool
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded output so far. Call Finish first.
func (w *Writer) Bytes() []byte { return w.bw.buf }

// WriteReset emits a reset marker: decoders restart with prev=0, prevLZ=0.
func (w *Writer) WriteReset() {
	w.bw.writeBits(1<<9, 11) // tag=01, lz-idx=0, sb=0
	w.prev = 0
	w.prevLZ = 0
}

// Write encodes v against the running XOR state.
func (w *Writer) Write(v float64) bool {
	value := math.Float64bits(v)
	xor := value ^ w.prev
	if xor == 0 {
		w.bw.writeBits(0, 2) // tag 00: identical
		w.prev = value
		return true
	}

	clz := uint(bits.LeadingZeros64(xor))
	tz := uint(bits.TrailingZeros64(xor))
	lz := roundLZ(clz)

	switch {
	case tz > 6:
		sb := 64 - lz - tz
		header := (uint64(1) << 9) | (uint64(lzIndex(lz)) << 6) | uint64(sb) // tag 01
		w.bw.writeBits(header, 11)
		w.bw.writeBits(xor>>tz, int(sb))
		w.prevLZ = lz
	case lz == w.prevLZ:
		sb := 64 - lz
		w.bw.writeBits(2, 2) // tag 10
		w.bw.writeBits(xor, int(sb))
	default:
		sb := 64 - lz
		header := (uint64(3) << 3) | uint64(lzIndex(lz)) // tag 11
		w.bw.writeBits(header, 5)
		w.bw.writeBits(xor, int(sb))
		w.prevLZ = lz
	}
	w.prev = value
	return true
}

// Finish appends a tag-01/sb=0 marker so decoders terminate deterministically.
func (w *Writer) Finish() {
	w.bw.writeBits(1<<9, 11)
}

// Reader decodes a byte stream produced by Writer.
type Reader struct {
	br     *bitReader
	prev   uint64
	prevLZ uint
}

// NewReader wraps an encoded byte slice for reading.
func NewReader(buf []byte) *Reader {
	return &Reader{br: newBitReader(buf)}
}

// readOne decodes the next XOR-coded sample, returning ok=false at end of
// stream or on a reset marker that is not followed by further data. It
// never mutates prev/prevLZ on failure.
func (r *Reader) readOne() (float64, bool) {
again:
	if !r.br.avail(2) {
		return 0, false
	}
	mark := r.br.save()
	tag := r.br.readBits(2)
	var value uint64
	switch tag {
	case 0:
		value = 0
	case 1:
		if !r.br.avail(9) {
			r.br.restore(mark)
			return 0, false
		}
		lzIdx := r.br.readBits(3)
		sb := r.br.readBits(6)
		if sb == 0 {
			if !r.br.avail(8) {
				// finish marker: only byte padding follows
				r.br.restore(mark)
				return 0, false
			}
			r.prev = 0
			r.prevLZ = 0
			goto again
		}
		if !r.br.avail(int(sb)) {
			r.br.restore(mark)
			return 0, false
		}
		lz := lzTable[lzIdx]
		payload := r.br.readBits(int(sb))
		value = payload << (64 - uint(sb) - lz)
		r.prevLZ = lz
	case 2:
		sb := 64 - r.prevLZ
		if !r.br.avail(int(sb)) {
			r.br.restore(mark)
			return 0, false
		}
		value = r.br.readBits(int(sb))
	case 3:
		if !r.br.avail(3) {
			r.br.restore(mark)
			return 0, false
		}
		lzIdx := r.br.readBits(3)
		lz := lzTable[lzIdx]
		sb := 64 - lz
		if !r.br.avail(int(sb)) {
			r.br.restore(mark)
			return 0, false
		}
		value = r.br.readBits(int(sb))
		r.prevLZ = lz
	}
	value ^= r.prev
	r.prev = value
	return math.Float64frombits(value), true
}

// Read returns the next decoded value, or ok=false at end of stream.
func (r *Reader) Read() (float64, bool) {
	return r.readOne()
}

// Last returns the most recently decoded value.
func (r *Reader) Last() float64 { return math.Float64frombits(r.prev) }

// Seek advances the reader by n samples.
func (r *Reader) Seek(n int) {
	for i := 0; i < n; i++ {
		if _, ok := r.readOne(); !ok {
			return
		}
	}
}

// Search scans forward, invoking pred on each decoded value with a
// run-length of 1 (Chimp has no native RLE). pred returns how many to skip
// (0 or 1); a return of 0 stops the search with the bitstream rewound to
// before the matched value, restoring prev/prevLZ to their pre-read state
// as required for a correct subsequent Read().
func (r *Reader) Search(pred func(value float64) int) bool {
	for {
		mark := r.br.save()
		prevSnap, prevLZSnap := r.prev, r.prevLZ
		v, ok := r.readOne()
		if !ok {
			return false
		}
		if pred(v) == 0 {
			r.br.restore(mark)
			r.prev, r.prevLZ = prevSnap, prevLZSnap
			return true
		}
	}
}
