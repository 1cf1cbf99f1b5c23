// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package intcodec

// DeltaWriter decorates Writer, storing first differences instead of
// absolute values. It keeps its own running base independent of the
// underlying Writer's RLE state.
type DeltaWriter struct {
	w    *Writer
	base int64
	have bool
}

// NewDeltaWriter wraps w.
func NewDeltaWriter(w *Writer) *DeltaWriter {
	return &DeltaWriter{w: w}
}

// Write encodes the difference between v and the previously written
// absolute value (zero for the first sample), then updates the base.
func (d *DeltaWriter) Write(v int64) bool {
	var delta int64
	if d.have {
		delta = v - d.base
	} else {
		delta = v
	}
	d.base = v
	d.have = true
	return d.w.Write(delta)
}

// Finish flushes the underlying writer.
func (d *DeltaWriter) Finish() { d.w.Finish() }

// Bytes returns the underlying writer's encoded output.
func (d *DeltaWriter) Bytes() []byte { return d.w.Bytes() }

// DeltaReader decorates Reader, adding back the running base that was
// subtracted at encode time.
type DeltaReader struct {
	r    *Reader
	base int64
	have bool
}

// NewDeltaReader wraps r.
func NewDeltaReader(r *Reader) *DeltaReader {
	return &DeltaReader{r: r}
}

// Read decodes the next delta and returns the reconstructed absolute value.
func (d *DeltaReader) Read() (int64, bool) {
	delta, ok := d.r.Read()
	if !ok {
		return 0, false
	}
	if d.have {
		d.base += delta
	} else {
		d.base = delta
	}
	d.have = true
	return d.base, true
}

// Last returns the most recently decoded absolute value.
func (d *DeltaReader) Last() int64 { return d.base }

// Seek advances n samples, maintaining the running base by re-deriving it
// from each skipped delta.
func (d *DeltaReader) Seek(n int) {
	for i := 0; i < n; i++ {
		if _, ok := d.Read(); !ok {
			return
		}
	}
}
