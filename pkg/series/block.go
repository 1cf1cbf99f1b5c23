// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package series implements the block-indexed, seekable, searchable series
// store (spec §4.4) backing telemetry history, built on top of the
// intcodec/floatcodec codecs.
package series

import (
	"errors"

	"github.com/zcmd-io/zcmd/pkg/floatcodec"
	"github.com/zcmd-io/zcmd/pkg/intcodec"
)

// ErrNotAvailable is returned when an external block load fails (I/O).
var ErrNotAvailable = errors.New("[SERIES]> block not available")

// ErrNotFound is a programmer error: Find was called on a series that is not
// KindInt. Find does not check that the series is monotonic.
var ErrNotFound = errors.New("[SERIES]> search on non-int series")

// Kind selects the codec family used by a series.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
)

// BlockSize is the encoded (compressed) byte size at which a writer seals
// the current block and rolls to a new one (spec §4.4: "≈ BlkSize
// bytes, e.g. 4 KiB").
const BlockSize = 4096

// Header is the fixed metadata preceding every block's compressed payload.
type Header struct {
	Offset    uint64 // sample ordinal of the block's first sample
	Count     uint32
	LastValue int64 // for KindInt; float series store LastFloat instead
	LastFloat float64
	NDP       uint8 // decimal places, for fixed-point int series
}

// Blk is a sealed or in-progress block: header plus its compressed bytes.
// Blocks are immutable once Sealed; a writer appends to the tail block
// until it is full, then allocates a new one.
type Blk struct {
	Header
	Data   []byte
	Sealed bool
	Delta  bool // whether this block's int codec used the Delta decorator
	Kind   Kind
}

// full reports whether the block has reached its target byte budget.
func (b *Blk) full() bool {
	return len(b.Data) >= BlockSize
}

// intReader returns a positioned reader over a copy of this block's
// payload: intcodec.Reader rewrites RLE markers in place as it consumes them.
func (b *Blk) intReader() (*intcodec.Reader, *intcodec.DeltaReader) {
	r := intcodec.NewReader(append([]byte(nil), b.Data...))
	if b.Delta {
		return nil, intcodec.NewDeltaReader(r)
	}
	return r, nil
}

func (b *Blk) floatReader() *floatcodec.Reader {
	return floatcodec.NewReader(b.Data)
}
