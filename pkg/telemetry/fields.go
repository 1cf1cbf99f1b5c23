// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

// FieldMeta describes one field of a telemetry record (spec §4.5): its
// position in the wire constructor, whether the server may update it after
// construction, whether the series store samples it, and how the series
// store should encode it.
type FieldMeta struct {
	Name      string
	CtorIndex int            // position in the record's wire constructor
	Mutable   bool           // updatable after the record is first observed
	Series    bool           // sampled into the series store on each tick
	Delta     bool           // series store uses the Delta codec decorator
	NDP       uint8          // decimal places, for fixed-point int series
	EnumTable map[int]string // non-nil for enum/flags fields
	KeyRank   int            // 0 = not part of the primary key; 1.. = tuple position
}

// Fielded is satisfied by every telemetry record type.
type Fielded interface {
	// Fields returns this record type's field metadata in declaration order.
	Fields() []FieldMeta
	// RAG derives this record's current health status.
	RAG() RAG
}

// KeyOf projects a record's primary-key fields, in KeyRank order, for use as
// a multicast/series-store lookup key. Records with a single-field key
// still return a 1-element slice so all callers share one code path.
func KeyOf(r Fielded, ctorArgs []any) []any {
	fields := r.Fields()
	ranked := make([]FieldMeta, 0, len(fields))
	for _, f := range fields {
		if f.KeyRank > 0 {
			ranked = append(ranked, f)
		}
	}
	key := make([]any, len(ranked))
	for _, f := range ranked {
		key[f.KeyRank-1] = ctorArgs[f.CtorIndex]
	}
	return key
}
