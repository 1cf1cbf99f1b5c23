// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reactor implements the cooperative task dispatcher (spec §4.6):
// a fixed-size pool of named thread slots, each running submitted tasks to
// completion with no preemption inside a task.
package reactor

import (
	"sync"

	"github.com/zcmd-io/zcmd/pkg/log"
)

// Task is a unit of work run to completion on its assigned slot.
type Task func()

// Reactor owns a fixed set of named slots, each backed by one goroutine.
// Two calls targeting the same slot execute in submission order; calls on
// distinct slots have no ordering relationship.
type Reactor struct {
	mu     sync.Mutex
	slots  map[string]*Slot
	order  []*Slot // round-robin ring for Add
	rrNext int
}

// New returns a Reactor with no slots. Call AddSlot for each named worker
// before Run/Invoke/Push target it.
func New() *Reactor {
	return &Reactor{slots: make(map[string]*Slot)}
}

// AddSlot creates and starts a named worker goroutine. Calling AddSlot twice
// with the same id is a programmer error and panics, matching the source's
// treatment of slot registration as a fixed, init-time configuration step.
func (rx *Reactor) AddSlot(id string) *Slot {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	if _, exists := rx.slots[id]; exists {
		log.Panicf("REACTOR > slot %q already registered", id)
	}
	s := newSlot(id, rx)
	rx.slots[id] = s
	rx.order = append(rx.order, s)
	go s.loop()
	return s
}

// Slot returns the named slot, or nil if it was never added.
func (rx *Reactor) Slot(id string) *Slot {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	return rx.slots[id]
}

// Add enqueues task on any worker, chosen round-robin across all slots.
func (rx *Reactor) Add(task Task) {
	rx.mu.Lock()
	if len(rx.order) == 0 {
		rx.mu.Unlock()
		log.Panic("REACTOR > Add called with no slots registered")
		return
	}
	s := rx.order[rx.rrNext%len(rx.order)]
	rx.rrNext++
	rx.mu.Unlock()
	s.Run(task)
}

// Run enqueues task on the named slot and wakes it if idle.
func (rx *Reactor) Run(sid string, task Task) {
	s := rx.Slot(sid)
	if s == nil {
		log.Errorf("REACTOR > Run: unknown slot %q", sid)
		return
	}
	s.Run(task)
}

// Invoke runs task inline if the caller (identified by from) is already on
// sid, otherwise it behaves like Run.
func (rx *Reactor) Invoke(from, sid string, task Task) {
	s := rx.Slot(sid)
	if s == nil {
		log.Errorf("REACTOR > Invoke: unknown slot %q", sid)
		return
	}
	s.Invoke(from, task)
}

// Push enqueues task on the named slot without waking it: the task runs the
// next time the slot drains its queue, whether that is because it was
// already busy or because something else wakes it later.
func (rx *Reactor) Push(sid string, task Task) {
	s := rx.Slot(sid)
	if s == nil {
		log.Errorf("REACTOR > Push: unknown slot %q", sid)
		return
	}
	s.Push(task)
}

// Stop signals every slot to drain its queue and exit. It does not wait for
// in-flight tasks to finish.
func (rx *Reactor) Stop() {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	for _, s := range rx.slots {
		s.stop()
	}
}
