// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeapRAG(t *testing.T) {
	green := &Heap{CacheSize: 100, CacheAllocs: 10}
	require.Equal(t, RAGGreen, green.RAG())

	amber := &Heap{CacheSize: 100, CacheAllocs: 10, HeapAllocs: 5}
	require.Equal(t, RAGAmber, amber.RAG())

	red := &Heap{CacheSize: 100, CacheAllocs: 150}
	require.Equal(t, RAGRed, red.RAG())
}

func TestHeapAllocatedSaturatesOnSkew(t *testing.T) {
	h := &Heap{CacheAllocs: 1, HeapAllocs: 0, Frees: 5}
	require.Equal(t, uint64(0), h.Allocated())
}

func TestThreadRAGThresholds(t *testing.T) {
	require.Equal(t, RAGGreen, (&Thread{CPU: 0.2}).RAG())
	require.Equal(t, RAGAmber, (&Thread{CPU: 0.6}).RAG())
	require.Equal(t, RAGRed, (&Thread{CPU: 0.9}).RAG())
}

func TestDBTableRAGStrictInequality(t *testing.T) {
	exactHalf := &DBTable{CacheHits: 50, CacheMiss: 50}
	require.Equal(t, RAGGreen, exactHalf.RAG())

	overHalf := &DBTable{CacheHits: 49, CacheMiss: 51}
	require.Equal(t, RAGAmber, overHalf.RAG())

	mostlyMiss := &DBTable{CacheHits: 10, CacheMiss: 90}
	require.Equal(t, RAGRed, mostlyMiss.RAG())
}

func TestReqTypeBitmap(t *testing.T) {
	var rt ReqType
	rt = rt.Add(RecordHeap).Add(RecordLink)
	require.True(t, rt.Has(RecordHeap))
	require.True(t, rt.Has(RecordLink))
	require.False(t, rt.Has(RecordThread))
	require.Equal(t, []RecordType{RecordHeap, RecordLink}, rt.All())
}

type fakeSubscriber struct {
	snapshots int
	deltas    int
}

func (f *fakeSubscriber) PushSnapshot(rt RecordType, key string, rec Fielded) { f.snapshots++ }
func (f *fakeSubscriber) PushDelta(rt RecordType, key string, rec Fielded)    { f.deltas++ }

func TestRegistrySnapshotThenDelta(t *testing.T) {
	reg := NewRegistry()
	h1 := &Heap{ID: 1}
	reg.Publish(RecordHeap, "1", h1)

	sub := &fakeSubscriber{}
	var want ReqType
	want = want.Add(RecordHeap)
	reg.Subscribe(sub, want)
	require.Equal(t, 1, sub.snapshots)
	require.Equal(t, 0, sub.deltas)

	h1Updated := &Heap{ID: 1, HeapAllocs: 3}
	reg.Publish(RecordHeap, "1", h1Updated)
	require.Equal(t, 1, sub.snapshots)
	require.Equal(t, 1, sub.deltas)
}

func TestRegistryUnsubscribeStopsDeltas(t *testing.T) {
	reg := NewRegistry()
	sub := &fakeSubscriber{}
	var want ReqType
	want = want.Add(RecordThread)
	reg.Subscribe(sub, want)
	reg.Unsubscribe(sub)

	reg.Publish(RecordThread, "7", &Thread{TID: 7})
	require.Equal(t, 0, sub.snapshots)
	require.Equal(t, 0, sub.deltas)
}

func TestKeyOfOrdersByKeyRank(t *testing.T) {
	h := &Heap{}
	args := []any{42, 2, uint64(4096), uint64(0), uint64(0), uint64(0), uint64(0)}
	key := KeyOf(h, args)
	require.Equal(t, []any{42, 2, uint64(4096)}, key)
}
