// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

// RecordType tags a telemetry record for wire framing and dispatch.
type RecordType uint32

const (
	RecordHeap RecordType = 1 << iota
	RecordHashTbl
	RecordThread
	RecordMx
	RecordSocket
	RecordQueue
	RecordEngine
	RecordLink
	RecordDBTable
	RecordDBHost
	RecordDB
	RecordApp
	RecordAlert
)

var recordTypeNames = map[RecordType]string{
	RecordHeap:    "Heap",
	RecordHashTbl: "HashTbl",
	RecordThread:  "Thread",
	RecordMx:      "Mx",
	RecordSocket:  "Socket",
	RecordQueue:   "Queue",
	RecordEngine:  "Engine",
	RecordLink:    "Link",
	RecordDBTable: "DBTable",
	RecordDBHost:  "DBHost",
	RecordDB:      "DB",
	RecordApp:     "App",
	RecordAlert:   "Alert",
}

func (rt RecordType) String() string {
	if name, ok := recordTypeNames[rt]; ok {
		return name
	}
	return "unknown"
}

// ReqType is a bitmap of RecordType values selecting which record classes a
// TelReq should stream (spec §4.5: "a bitmap of ReqType values").
type ReqType uint32

// Has reports whether rt is selected by this request bitmap.
func (r ReqType) Has(rt RecordType) bool { return uint32(r)&uint32(rt) != 0 }

// Add returns r with rt selected.
func (r ReqType) Add(rt RecordType) ReqType { return ReqType(uint32(r) | uint32(rt)) }

// All returns the RecordTypes selected by r, in declaration order.
func (r ReqType) All() []RecordType {
	order := []RecordType{
		RecordHeap, RecordHashTbl, RecordThread, RecordMx, RecordSocket, RecordQueue,
		RecordEngine, RecordLink, RecordDBTable, RecordDBHost, RecordDB, RecordApp, RecordAlert,
	}
	var out []RecordType
	for _, rt := range order {
		if r.Has(rt) {
			out = append(out, rt)
		}
	}
	return out
}
