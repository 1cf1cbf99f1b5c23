// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

// Heap reports a memory allocator partition's usage (spec §4.5).
//
// allocated = cacheAllocs + heapAllocs − frees (unsigned arithmetic in the
// source; a transiently negative result under relaxed ordering wraps). This
// implementation saturates at zero rather than wrapping. Allocated does not
// set Skewed; the record's producer sets it, and RAG reports Amber while it
// is set.
type Heap struct {
	ID          int
	Partition   int
	Size        uint64
	CacheSize   uint64
	CacheAllocs uint64
	HeapAllocs  uint64
	Frees       uint64
	Skewed      bool
}

func (h *Heap) Allocated() uint64 {
	total := h.CacheAllocs + h.HeapAllocs
	if h.Frees > total {
		return 0
	}
	return total - h.Frees
}

func (h *Heap) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "Partition", CtorIndex: 1, KeyRank: 2},
		{Name: "Size", CtorIndex: 2, KeyRank: 3},
		{Name: "CacheSize", CtorIndex: 3},
		{Name: "CacheAllocs", CtorIndex: 4, Mutable: true, Series: true, Delta: true},
		{Name: "HeapAllocs", CtorIndex: 5, Mutable: true, Series: true, Delta: true},
		{Name: "Frees", CtorIndex: 6, Mutable: true, Series: true, Delta: true},
	}
}

func (h *Heap) RAG() RAG {
	if h.Skewed {
		return RAGAmber
	}
	if h.Allocated() > h.CacheSize {
		return RAGRed
	}
	if h.HeapAllocs > 0 {
		return RAGAmber
	}
	return RAGGreen
}

// HashTbl reports a hash table's load and resize activity.
type HashTbl struct {
	ID      int
	Addr    uint64
	Load    uint64
	EffLoad uint64
	Resized uint64
}

func (h *HashTbl) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "Addr", CtorIndex: 1, KeyRank: 2},
		{Name: "Load", CtorIndex: 2, Mutable: true, Series: true},
		{Name: "EffLoad", CtorIndex: 3, Mutable: true, Series: true},
		{Name: "Resized", CtorIndex: 4, Mutable: true, Series: true, Delta: true},
	}
}

func (h *HashTbl) RAG() RAG {
	if h.Resized > 0 {
		return RAGRed
	}
	if float64(h.EffLoad) >= 0.8*float64(h.Load) {
		return RAGAmber
	}
	return RAGGreen
}

// Thread reports one OS thread's CPU utilization.
type Thread struct {
	TID int
	CPU float64 // 0..1
}

func (t *Thread) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "TID", CtorIndex: 0, KeyRank: 1},
		{Name: "CPU", CtorIndex: 1, Mutable: true, Series: true, NDP: 4},
	}
}

func (t *Thread) RAG() RAG { return ragThreshold(t.CPU) }

// MxState is the observable state of a mutex (spec §4.5: "table(state)").
type MxState int

const (
	MxUnlocked MxState = iota
	MxLocked
	MxContended
)

var mxStateRAG = map[MxState]RAG{
	MxUnlocked:  RAGGreen,
	MxLocked:    RAGGreen,
	MxContended: RAGRed,
}

// Mx reports a mutex's contention state.
type Mx struct {
	ID    int
	State MxState
}

func (m *Mx) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "State", CtorIndex: 1, Mutable: true, Series: true,
			EnumTable: map[int]string{int(MxUnlocked): "unlocked", int(MxLocked): "locked", int(MxContended): "contended"}},
	}
}

func (m *Mx) RAG() RAG { return mxStateRAG[m.State] }

// Socket reports a TCP/UDP socket's buffer occupancy.
type Socket struct {
	Socket    int
	TxBufLen  uint64
	RxBufLen  uint64
	TxBufSize uint64
	RxBufSize uint64
}

func (s *Socket) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "Socket", CtorIndex: 0, KeyRank: 1},
		{Name: "TxBufLen", CtorIndex: 1, Mutable: true, Series: true},
		{Name: "RxBufLen", CtorIndex: 2, Mutable: true, Series: true},
		{Name: "TxBufSize", CtorIndex: 3},
		{Name: "RxBufSize", CtorIndex: 4},
	}
}

func (s *Socket) RAG() RAG {
	txRatio, rxRatio := 0.0, 0.0
	if s.TxBufSize > 0 {
		txRatio = float64(s.TxBufLen) / float64(s.TxBufSize)
	}
	if s.RxBufSize > 0 {
		rxRatio = float64(s.RxBufLen) / float64(s.RxBufSize)
	}
	ratio := txRatio
	if rxRatio > ratio {
		ratio = rxRatio
	}
	return ragThreshold(ratio)
}

// QueueType distinguishes work-queue kinds sharing the Queue record shape.
type QueueType int

const (
	QueueTypeIn QueueType = iota
	QueueTypeOut
	QueueTypeTimer
)

// Queue reports a bounded queue's fill level.
type Queue struct {
	ID    int
	Type  QueueType
	Count uint64
	Size  uint64
}

func (q *Queue) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "Type", CtorIndex: 1, KeyRank: 2,
			EnumTable: map[int]string{int(QueueTypeIn): "in", int(QueueTypeOut): "out", int(QueueTypeTimer): "timer"}},
		{Name: "Count", CtorIndex: 2, Mutable: true, Series: true},
		{Name: "Size", CtorIndex: 3},
	}
}

func (q *Queue) RAG() RAG {
	if q.Size == 0 {
		return RAGGreen
	}
	return ragThreshold(float64(q.Count) / float64(q.Size))
}

// EngineState is the observable state of a reactor engine (slot).
type EngineState int

const (
	EngineStopped EngineState = iota
	EngineRunning
	EngineDraining
)

var engineStateRAG = map[EngineState]RAG{
	EngineStopped:  RAGAmber,
	EngineRunning:  RAGGreen,
	EngineDraining: RAGAmber,
}

// Engine reports a reactor thread slot's run state.
type Engine struct {
	ID    int
	State EngineState
}

func (e *Engine) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "State", CtorIndex: 1, Mutable: true, Series: true,
			EnumTable: map[int]string{int(EngineStopped): "stopped", int(EngineRunning): "running", int(EngineDraining): "draining"}},
	}
}

func (e *Engine) RAG() RAG { return engineStateRAG[e.State] }

// LinkState is the observable state of a TLS link.
type LinkState int

const (
	LinkDown LinkState = iota
	LinkLoggingIn
	LinkUp
	LinkLoginFailed
)

var linkStateRAG = map[LinkState]RAG{
	LinkDown:        RAGAmber,
	LinkLoggingIn:   RAGAmber,
	LinkUp:          RAGGreen,
	LinkLoginFailed: RAGRed,
}

// Link reports one connection's FSM state.
type Link struct {
	ID    int
	State LinkState
}

func (l *Link) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "State", CtorIndex: 1, Mutable: true, Series: true,
			EnumTable: map[int]string{int(LinkDown): "down", int(LinkLoggingIn): "login", int(LinkUp): "up", int(LinkLoginFailed): "loginFailed"}},
	}
}

func (l *Link) RAG() RAG { return linkStateRAG[l.State] }

// DBTable reports a user-DB table's cache-hit effectiveness.
type DBTable struct {
	Name      string
	CacheHits uint64
	CacheMiss uint64
}

func (d *DBTable) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "Name", CtorIndex: 0, KeyRank: 1},
		{Name: "CacheHits", CtorIndex: 1, Mutable: true, Series: true, Delta: true},
		{Name: "CacheMiss", CtorIndex: 2, Mutable: true, Series: true, Delta: true},
	}
}

func (d *DBTable) RAG() RAG {
	total := d.CacheHits + d.CacheMiss
	if total == 0 {
		return RAGGreen
	}
	ratio := float64(d.CacheMiss) / float64(total)
	switch {
	case ratio > 0.8:
		return RAGRed
	case ratio > 0.5:
		return RAGAmber
	default:
		return RAGGreen
	}
}

// DBHostState is the observable state of a database host connection.
type DBHostState int

const (
	DBHostDisconnected DBHostState = iota
	DBHostConnecting
	DBHostConnected
	DBHostFailed
)

var dbHostStateRAG = map[DBHostState]RAG{
	DBHostDisconnected: RAGAmber,
	DBHostConnecting:   RAGAmber,
	DBHostConnected:    RAGGreen,
	DBHostFailed:       RAGRed,
}

// DBHost reports one database connection's health.
type DBHost struct {
	ID    int
	State DBHostState
}

func (d *DBHost) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "State", CtorIndex: 1, Mutable: true, Series: true,
			EnumTable: map[int]string{int(DBHostDisconnected): "disconnected", int(DBHostConnecting): "connecting", int(DBHostConnected): "connected", int(DBHostFailed): "failed"}},
	}
}

func (d *DBHost) RAG() RAG { return dbHostStateRAG[d.State] }

// DBState is the observable state of the user-DB subsystem as a whole.
type DBState int

const (
	DBOpening DBState = iota
	DBOpen
	DBCheckpointing
	DBFailed
)

var dbStateRAG = map[DBState]RAG{
	DBOpening:       RAGAmber,
	DBOpen:          RAGGreen,
	DBCheckpointing: RAGGreen,
	DBFailed:        RAGRed,
}

// DB reports the singleton user-DB's overall state.
type DB struct {
	State DBState
}

func (d *DB) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "State", CtorIndex: 0, Mutable: true, Series: true,
			EnumTable: map[int]string{int(DBOpening): "opening", int(DBOpen): "open", int(DBCheckpointing): "checkpointing", int(DBFailed): "failed"}},
	}
}

func (d *DB) RAG() RAG { return dbStateRAG[d.State] }

// App reports process-wide, stored-only identity fields (spec: "stored",
// no derived formula — RAG always Green while the process is observable).
type App struct {
	ID      int
	Name    string
	Version string
}

func (a *App) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "ID", CtorIndex: 0, KeyRank: 1},
		{Name: "Name", CtorIndex: 1},
		{Name: "Version", CtorIndex: 2},
	}
}

func (a *App) RAG() RAG { return RAGGreen }

// Alert is a one-shot event record; it has no derived health ("n/a").
type Alert struct {
	Time    int64
	SeqNo   uint64
	Level   string
	Message string
}

func (a *Alert) Fields() []FieldMeta {
	return []FieldMeta{
		{Name: "Time", CtorIndex: 0, KeyRank: 1},
		{Name: "SeqNo", CtorIndex: 1, KeyRank: 2},
		{Name: "Level", CtorIndex: 2},
		{Name: "Message", CtorIndex: 3},
	}
}

func (a *Alert) RAG() RAG { return RAGGreen }
