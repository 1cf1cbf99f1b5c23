// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dispatch implements the process-wide protocol dispatcher (spec
// §4.8): a map from frame type to handler. login is handled specially by
// the connection FSM and is never installed here; every other type gets its
// handler at run time through Install, and a type with no handler always
// returns -1, which tears the link down.
package dispatch

import "github.com/zcmd-io/zcmd/pkg/iobuf"

// Sender is the minimal capability a handler needs to reply on the link
// that delivered its request.
type Sender interface {
	Send(frame []byte) error
}

// Handler processes one decoded frame body and returns 0 on success, a
// negative value on failure; the connection FSM that called Dispatch
// decides whether a failure tears the link down.
type Handler func(link Sender, seqNo uint64, body []byte) int

// Table maps frame type → Handler; entries are added with Install.
type Table struct {
	handlers map[iobuf.Type]Handler
}

// NewServerTable returns an empty server-side table. The server connection
// installs its userDB, cmd and telReq handlers itself; login is never
// installed, as the server connection FSM handles it directly.
func NewServerTable() *Table {
	return &Table{handlers: make(map[iobuf.Type]Handler)}
}

// NewClientTable returns an empty client-side table; no handlers are
// installed on it by this package.
func NewClientTable() *Table {
	return &Table{handlers: make(map[iobuf.Type]Handler)}
}

// Install registers h for t, replacing any previous handler. Installing a
// handler for TypeLogin is a programmer error since login is FSM-owned;
// callers should not do this, but Install does not itself enforce it so
// that tests can exercise the table in isolation.
func (tbl *Table) Install(t iobuf.Type, h Handler) {
	tbl.handlers[t] = h
}

// Dispatch looks up the handler for t and invokes it. An unknown type
// returns -1 without invoking anything, matching the close-link contract
// at the framing layer.
func (tbl *Table) Dispatch(link Sender, t iobuf.Type, seqNo uint64, body []byte) int {
	h, ok := tbl.handlers[t]
	if !ok {
		return -1
	}
	return h(link, seqNo, body)
}
