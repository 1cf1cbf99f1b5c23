// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package telemetry implements the in-process telemetry record model: typed
// records over live objects, per-field metadata driving series/delta
// selection, and RAG (Red/Amber/Green) health derivation.
package telemetry

import (
	"fmt"
	"io"
)

// RAG is a health status derived from a record's fields, either by a
// threshold formula or by a lookup table keyed on the record's own state
// enum (spec §4.5: "table(state)").
type RAG string

const (
	RAGGreen RAG = "green"
	RAGAmber RAG = "amber"
	RAGRed   RAG = "red"
)

func (e *RAG) UnmarshalGQL(v interface{}) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("TELEMETRY/RAG > enums must be strings")
	}
	*e = RAG(str)
	if !e.Valid() {
		return fmt.Errorf("TELEMETRY/RAG > %s is not a valid RAG status", str)
	}
	return nil
}

func (e RAG) MarshalGQL(w io.Writer) {
	fmt.Fprintf(w, "\"%s\"", e)
}

func (e RAG) Valid() bool {
	return e == RAGGreen || e == RAGAmber || e == RAGRed
}

// ragThreshold is the common "ratio ≥ 80% red, ≥ 50% amber" shape used by
// Thread, Socket and Queue.
func ragThreshold(ratio float64) RAG {
	switch {
	case ratio >= 0.8:
		return RAGRed
	case ratio >= 0.5:
		return RAGAmber
	default:
		return RAGGreen
	}
}
