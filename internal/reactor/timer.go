// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package reactor

import (
	"sync"
	"time"
)

// TimerMode controls how a second RunAt call targeting an already-armed
// Timer interacts with the pending schedule.
type TimerMode int

const (
	// TimerUpdate unconditionally replaces the pending deadline.
	TimerUpdate TimerMode = iota
	// TimerAdvance replaces the pending deadline only if the new one is
	// sooner.
	TimerAdvance
	// TimerDefer replaces the pending deadline only if the new one is
	// later.
	TimerDefer
)

// Timer is a cancellable handle to a scheduled task. The zero value is a
// valid, unarmed Timer ready for RunAt.
type Timer struct {
	mu       sync.Mutex
	deadline time.Time
	armed    bool
	inner    *time.Timer
}

// NewTimer returns an unarmed Timer.
func NewTimer() *Timer { return &Timer{} }

// RunAt (re)schedules task to run on sid at deadline, honoring mode against
// any schedule already pending on t. Passing a nil t is equivalent to
// always-Update semantics against a fresh timer.
func (rx *Reactor) RunAt(sid string, task Task, deadline time.Time, mode TimerMode, t *Timer) *Timer {
	if t == nil {
		t = NewTimer()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		switch mode {
		case TimerAdvance:
			if !deadline.Before(t.deadline) {
				return t
			}
		case TimerDefer:
			if !deadline.After(t.deadline) {
				return t
			}
		}
		if t.inner != nil {
			t.inner.Stop()
		}
	}

	t.deadline = deadline
	t.armed = true
	d := time.Until(deadline)
	t.inner = time.AfterFunc(d, func() {
		t.mu.Lock()
		t.armed = false
		t.mu.Unlock()
		rx.Run(sid, task)
	})
	return t
}

// Del cancels t. Idempotent: calling it again, or calling it after the
// timer has already fired, is a no-op. Returns whether the timer was still
// pending at the moment of cancellation — races with firing are resolved in
// the cancel's favor for this boolean, matching the underlying
// time.Timer.Stop contract.
func Del(t *Timer) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return false
	}
	t.armed = false
	if t.inner != nil {
		return t.inner.Stop()
	}
	return false
}
