// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package series

import (
	"github.com/zcmd-io/zcmd/pkg/floatcodec"
	"github.com/zcmd-io/zcmd/pkg/intcodec"
)

// Backend is supplied by an external store (spec §6: "an external store
// that supplies loadBlk/saveBlk"). The codec here defines only the
// block-internal byte layout; persistence is the backend's concern.
type Backend interface {
	LoadBlk(seriesID string, blkOffset uint64) (*Blk, error)
	SaveBlk(seriesID string, blkOffset uint64, b *Blk) error
}

// Series is an ordered sequence of samples split into blocks, backed by an
// Index and an external Backend.
type Series struct {
	ID      string
	Kind    Kind
	Delta   bool // int series only: use the Delta codec decorator
	NDP     uint8
	backend Backend
	index   *Index
}

// NewSeries constructs a series with an empty index.
func NewSeries(id string, kind Kind, delta bool, ndp uint8, backend Backend) *Series {
	return &Series{ID: id, Kind: kind, Delta: delta, NDP: ndp, backend: backend, index: NewIndex()}
}

// Writer appends samples to a series, sealing and rolling blocks as needed.
type Writer struct {
	s         *Series
	intW      *intcodec.Writer
	deltaW    *intcodec.DeltaWriter
	floatW    *floatcodec.Writer
	count     uint32
	blkStart  uint64 // sample offset of the current (possibly in-progress) block
	lastInt   int64
	lastFloat float64
}

// NewWriter returns a writer appending to the tail of s.
func NewWriter(s *Series) *Writer {
	w := &Writer{s: s}
	w.startBlock()
	return w
}

func (w *Writer) sampleOffset() uint64 {
	last := w.s.index.Last()
	if last == nil {
		return 0
	}
	return last.Offset + uint64(last.Count)
}

func (w *Writer) startBlock() {
	w.blkStart = w.sampleOffset()
	w.count = 0
	switch w.s.Kind {
	case KindInt:
		w.intW = intcodec.NewWriter()
		if w.s.Delta {
			w.deltaW = intcodec.NewDeltaWriter(w.intW)
		}
	case KindFloat:
		w.floatW = floatcodec.NewWriter()
	}
}

// WriteInt appends an integer sample. Only valid for KindInt series.
func (w *Writer) WriteInt(v int64) {
	if w.count > 0 && w.currentSize() >= BlockSize {
		w.seal()
		w.startBlock()
	}
	if w.s.Delta {
		w.deltaW.Write(v)
	} else {
		w.intW.Write(v)
	}
	w.count++
	w.lastInt = v
}

// WriteFloat appends a float sample. Only valid for KindFloat series.
func (w *Writer) WriteFloat(v float64) {
	if w.count > 0 && w.currentSize() >= BlockSize {
		w.seal()
		w.startBlock()
	}
	w.floatW.Write(v)
	w.count++
	w.lastFloat = v
}

func (w *Writer) currentSize() int {
	if w.s.Kind == KindInt {
		return len(w.intW.Bytes())
	}
	return len(w.floatW.Bytes())
}

// seal finalizes the in-progress block and persists it via the backend,
// using lastInt/lastFloat (the last value written into it) for the header.
func (w *Writer) seal() {
	var data []byte
	if w.s.Kind == KindInt {
		w.intW.Finish()
		data = w.intW.Bytes()
	} else {
		w.floatW.Finish()
		data = w.floatW.Bytes()
	}
	b := &Blk{
		Header: Header{
			Offset:    w.blkStart,
			Count:     w.count,
			LastValue: w.lastInt,
			LastFloat: w.lastFloat,
			NDP:       w.s.NDP,
		},
		Data:   data,
		Sealed: true,
		Delta:  w.s.Delta,
		Kind:   w.s.Kind,
	}
	blkOffset := w.s.index.Append(b)
	if w.s.backend != nil {
		_ = w.s.backend.SaveBlk(w.s.ID, blkOffset, b)
	}
}

// Finish seals the current (possibly partial) block.
func (w *Writer) Finish() {
	if w.count == 0 {
		return
	}
	w.seal()
}

// Purge drops the index head up to but not including blkOffset.
func (s *Series) Purge(blkOffset uint64) {
	s.index.Purge(blkOffset)
}

// Reader reads samples back from a series, rolling across blocks
// transparently.
type Reader struct {
	s          *Series
	blkOffset  uint64
	blk        *Blk
	intR       *intcodec.Reader
	deltaR     *intcodec.DeltaReader
	floatR     *floatcodec.Reader
	consumed   uint32 // samples consumed from the current block
	pendingInt *int64 // a value already consumed by Find's delta-series fallback
}

// NewReader returns a reader starting at the first live block.
func NewReader(s *Series) (*Reader, error) {
	r := &Reader{s: s}
	if s.index.Tail() > s.index.Head() {
		if err := r.loadBlock(s.index.Head()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Reader) loadBlock(blkOffset uint64) error {
	b := r.s.index.At(blkOffset)
	if b == nil && r.s.backend != nil {
		loaded, err := r.s.backend.LoadBlk(r.s.ID, blkOffset)
		if err != nil {
			return ErrNotAvailable
		}
		b = loaded
	}
	if b == nil {
		return ErrNotAvailable
	}
	r.blkOffset = blkOffset
	r.blk = b
	r.consumed = 0
	switch b.Kind {
	case KindInt:
		ir, dr := b.intReader()
		r.intR, r.deltaR = ir, dr
	case KindFloat:
		r.floatR = b.floatReader()
	}
	return nil
}

// Seek positions the reader at the given sample offset via a binary search
// of the index, then decodes forward from the target block's start,
// skipping offset-block.Offset samples.
func (r *Reader) Seek(offset uint64) error {
	blkOffset, ok := r.s.index.FindBySampleOffset(offset)
	if !ok {
		return ErrNotAvailable
	}
	if err := r.loadBlock(blkOffset); err != nil {
		return err
	}
	skip := int(offset - r.blk.Offset)
	for i := 0; i < skip; i++ {
		if _, ok := r.readRaw(); !ok {
			return ErrNotAvailable
		}
	}
	return nil
}

// Find positions the reader at the least sample with value >= v. Only valid
// for monotonically non-decreasing KindInt series.
func (r *Reader) Find(v int64) error {
	if r.s.Kind != KindInt {
		return ErrNotFound
	}
	blkOffset, ok := r.s.index.FindByLastValue(v)
	if !ok {
		return ErrNotAvailable
	}
	if err := r.loadBlock(blkOffset); err != nil {
		return err
	}
	if r.deltaR != nil {
		for {
			val, ok := r.deltaR.Read()
			if !ok {
				return ErrNotAvailable
			}
			if val >= v {
				// no rewind support on DeltaReader; caller re-reads via ReadInt
				r.pendingInt = &val
				return nil
			}
		}
	}
	found := r.intR.Search(func(value int64, run int) int {
		if value < v {
			return run
		}
		return 0
	})
	if !found {
		return ErrNotAvailable
	}
	return nil
}

// ReadInt returns the next integer sample, rolling to the next block on
// end-of-block. Only valid for KindInt series.
func (r *Reader) ReadInt() (int64, bool) {
	if r.pendingInt != nil {
		v := *r.pendingInt
		r.pendingInt = nil
		return v, true
	}
	return r.readRawInt()
}

// ReadFloat returns the next float sample, rolling to the next block.
func (r *Reader) ReadFloat() (float64, bool) {
	if r.floatR == nil {
		return 0, false
	}
	v, ok := r.floatR.Read()
	if ok {
		r.consumed++
		return v, true
	}
	if !r.rollNext() {
		return 0, false
	}
	return r.ReadFloat()
}

func (r *Reader) readRawInt() (int64, bool) {
	if r.deltaR != nil {
		v, ok := r.deltaR.Read()
		if ok {
			r.consumed++
			return v, true
		}
	} else if r.intR != nil {
		v, ok := r.intR.Read()
		if ok {
			r.consumed++
			return v, true
		}
	}
	if !r.rollNext() {
		return 0, false
	}
	return r.readRawInt()
}

// readRaw is a kind-agnostic single-sample advance used by Seek.
func (r *Reader) readRaw() (any, bool) {
	if r.s.Kind == KindInt {
		return r.readRawInt()
	}
	return r.ReadFloat()
}

func (r *Reader) rollNext() bool {
	next := r.blkOffset + 1
	if next >= r.s.index.Tail() {
		return false
	}
	return r.loadBlock(next) == nil
}
