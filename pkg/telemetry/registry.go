// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

import "sync"

// Subscriber receives telemetry pushes for the record classes it has
// requested. Implementations live in the server/link layer; this package
// only owns the fan-out, not the wire encoding.
type Subscriber interface {
	// PushSnapshot delivers the current state of a live record, observed at
	// subscription time.
	PushSnapshot(rt RecordType, key string, rec Fielded)
	// PushDelta delivers an incremental update to an already-snapshotted
	// record.
	PushDelta(rt RecordType, key string, rec Fielded)
}

type subscription struct {
	sub  Subscriber
	want ReqType
}

// Registry is the in-process producer/consumer hub: observers of live
// objects Publish records; subscribed links receive a snapshot on join and
// deltas thereafter (spec §4.5, §4.8: "telemetry push record").
type Registry struct {
	mu   sync.RWMutex
	live map[RecordType]map[string]Fielded
	subs map[Subscriber]*subscription
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		live: make(map[RecordType]map[string]Fielded),
		subs: make(map[Subscriber]*subscription),
	}
}

// Subscribe registers sub for the record classes in want, immediately
// replaying a snapshot of every currently-live record matching want.
func (reg *Registry) Subscribe(sub Subscriber, want ReqType) {
	reg.mu.Lock()
	reg.subs[sub] = &subscription{sub: sub, want: want}
	var snapshot []struct {
		rt  RecordType
		key string
		rec Fielded
	}
	for _, rt := range want.All() {
		for key, rec := range reg.live[rt] {
			snapshot = append(snapshot, struct {
				rt  RecordType
				key string
				rec Fielded
			}{rt, key, rec})
		}
	}
	reg.mu.Unlock()

	for _, s := range snapshot {
		sub.PushSnapshot(s.rt, s.key, s.rec)
	}
}

// Unsubscribe drops sub; no further pushes are delivered to it.
func (reg *Registry) Unsubscribe(sub Subscriber) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.subs, sub)
}

// Publish records rec as the current state for (rt, key) and notifies every
// subscriber whose request bitmap includes rt. The first publish of a given
// key is itself the snapshot new subscribers will later see; subsequent
// publishes are deltas.
func (reg *Registry) Publish(rt RecordType, key string, rec Fielded) {
	reg.mu.Lock()
	byKey, ok := reg.live[rt]
	if !ok {
		byKey = make(map[string]Fielded)
		reg.live[rt] = byKey
	}
	_, existed := byKey[key]
	byKey[key] = rec

	var targets []Subscriber
	for sub, s := range reg.subs {
		if s.want.Has(rt) {
			targets = append(targets, sub)
		}
	}
	reg.mu.Unlock()

	for _, sub := range targets {
		if existed {
			sub.PushDelta(rt, key, rec)
		} else {
			sub.PushSnapshot(rt, key, rec)
		}
	}
}

// Retire removes (rt, key) from the live set; no further deltas will be
// produced for it and it will not be replayed to new subscribers.
func (reg *Registry) Retire(rt RecordType, key string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if byKey, ok := reg.live[rt]; ok {
		delete(byKey, key)
	}
}
