// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/zcmd-io/zcmd/pkg/telemetry"
)

// recordCtors maps a wire RecordType tag to a constructor for its Go type.
// Each record's exported field names match FieldMeta.Name exactly, so the
// generic encoder/decoder below never needs a per-type switch.
var recordCtors = map[telemetry.RecordType]func() telemetry.Fielded{
	telemetry.RecordHeap:    func() telemetry.Fielded { return &telemetry.Heap{} },
	telemetry.RecordHashTbl: func() telemetry.Fielded { return &telemetry.HashTbl{} },
	telemetry.RecordThread:  func() telemetry.Fielded { return &telemetry.Thread{} },
	telemetry.RecordMx:      func() telemetry.Fielded { return &telemetry.Mx{} },
	telemetry.RecordSocket:  func() telemetry.Fielded { return &telemetry.Socket{} },
	telemetry.RecordQueue:   func() telemetry.Fielded { return &telemetry.Queue{} },
	telemetry.RecordEngine:  func() telemetry.Fielded { return &telemetry.Engine{} },
	telemetry.RecordLink:    func() telemetry.Fielded { return &telemetry.Link{} },
	telemetry.RecordDBTable: func() telemetry.Fielded { return &telemetry.DBTable{} },
	telemetry.RecordDBHost:  func() telemetry.Fielded { return &telemetry.DBHost{} },
	telemetry.RecordDB:      func() telemetry.Fielded { return &telemetry.DB{} },
	telemetry.RecordApp:     func() telemetry.Fielded { return &telemetry.App{} },
	telemetry.RecordAlert:   func() telemetry.Fielded { return &telemetry.Alert{} },
}

func sortedFields(rec telemetry.Fielded) []telemetry.FieldMeta {
	fields := append([]telemetry.FieldMeta(nil), rec.Fields()...)
	sort.Slice(fields, func(i, j int) bool { return fields[i].CtorIndex < fields[j].CtorIndex })
	return fields
}

// TelemetryFrame is the envelope multicast to links: a record tag, its
// primary-key string (for delta correlation), and the encoded fields.
type TelemetryFrame struct {
	RecordType telemetry.RecordType
	Key        string
	Payload    []byte
}

func (f *TelemetryFrame) Encode() []byte {
	e := encoder{}
	e.u32(uint32(f.RecordType))
	e.str(f.Key)
	e.bytes(f.Payload)
	return e.buf
}

func DecodeTelemetryFrame(buf []byte) (*TelemetryFrame, error) {
	d := decoder{buf: buf}
	f := &TelemetryFrame{}
	var err error
	var rt uint32
	if rt, err = d.u32(); err != nil {
		return nil, err
	}
	f.RecordType = telemetry.RecordType(rt)
	if f.Key, err = d.str(); err != nil {
		return nil, err
	}
	if f.Payload, err = d.bytesField(); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeRecord serializes rec's exported fields in CtorIndex order using
// each field's Go kind (int*/uint*/float64/string/bool). There is no
// FlatBuffer schema compiler in scope (spec §6 calls the format
// "FlatBuffer-style", not FlatBuffers itself), so the layout is produced by
// walking FieldMeta against the struct via reflection.
func EncodeRecord(rec telemetry.Fielded) []byte {
	e := encoder{}
	v := reflect.ValueOf(rec).Elem()
	for _, f := range sortedFields(rec) {
		fv := v.FieldByName(f.Name)
		encodeReflected(&e, fv)
	}
	return e.buf
}

func encodeReflected(e *encoder, fv reflect.Value) {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.i64(fv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.u64(fv.Uint())
	case reflect.Float32, reflect.Float64:
		e.f64(fv.Float())
	case reflect.String:
		e.str(fv.String())
	case reflect.Bool:
		e.bool(fv.Bool())
	default:
		panic(fmt.Sprintf("wire: unsupported telemetry field kind %s", fv.Kind()))
	}
}

// DecodeRecord reconstructs the Fielded value for rt from buf.
func DecodeRecord(rt telemetry.RecordType, buf []byte) (telemetry.Fielded, error) {
	ctor, ok := recordCtors[rt]
	if !ok {
		return nil, fmt.Errorf("[WIRE]> unknown telemetry record type %d", rt)
	}
	rec := ctor()
	v := reflect.ValueOf(rec).Elem()
	d := decoder{buf: buf}
	for _, f := range sortedFields(rec) {
		fv := v.FieldByName(f.Name)
		if err := decodeReflected(&d, fv); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func decodeReflected(d *decoder, fv reflect.Value) error {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := d.i64()
		if err != nil {
			return err
		}
		fv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := d.u64()
		if err != nil {
			return err
		}
		fv.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := d.f64()
		if err != nil {
			return err
		}
		fv.SetFloat(v)
	case reflect.String:
		v, err := d.str()
		if err != nil {
			return err
		}
		fv.SetString(v)
	case reflect.Bool:
		v, err := d.boolean()
		if err != nil {
			return err
		}
		fv.SetBool(v)
	default:
		return fmt.Errorf("[WIRE]> unsupported telemetry field kind %s", fv.Kind())
	}
	return nil
}
