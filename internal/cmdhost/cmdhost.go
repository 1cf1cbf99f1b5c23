// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmdhost implements the RBAC-gated command registry: a cmd
// request carries an argv vector and is dispatched to a registered
// command's handler after checking both the blanket command permission
// and the command's own permission id.
package cmdhost

import (
	"context"
	"sync"

	"github.com/zcmd-io/zcmd/internal/userdb"
)

// Result is what a command handler returns: a process-style exit code
// and captured text output.
type Result struct {
	Code int32
	Out  string
}

type HandlerFunc func(ctx context.Context, argv []string) Result

type Command struct {
	Name   string
	PermID int
	Fn     HandlerFunc
}

// Host is the command registry gating invocation by permission.
type Host struct {
	zcmdPerm int

	mu   sync.RWMutex
	cmds map[string]*Command
}

func New(zcmdPerm int) *Host {
	return &Host{zcmdPerm: zcmdPerm, cmds: make(map[string]*Command)}
}

func (h *Host) Register(cmd *Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds[cmd.Name] = cmd
}

// Invoke runs argv[0] on behalf of user, gated by userdb.Allowed for both
// the blanket command permission and the resolved command's own
// permission id. Denials and lookup failures are reported as a non-zero
// Result rather than an error, matching how a ReqAck surfaces them to
// the client.
func (h *Host) Invoke(ctx context.Context, user *userdb.User, interactive bool, argv []string) Result {
	if interactive && user.Flags&userdb.FlagChPass != 0 {
		return Result{Code: -1, Out: "permission denied (user must change password)\n"}
	}
	if !userdb.Allowed(user, interactive, h.zcmdPerm) {
		return Result{Code: -1, Out: "permission denied\n"}
	}

	if len(argv) == 0 {
		return Result{Code: -1, Out: "usage: <command> [args...]\n"}
	}

	h.mu.RLock()
	cmd, ok := h.cmds[argv[0]]
	h.mu.RUnlock()
	if !ok {
		return Result{Code: -1, Out: "unknown command: " + argv[0] + "\n"}
	}

	if !userdb.Allowed(user, interactive, cmd.PermID) {
		return Result{Code: -1, Out: "permission denied\n"}
	}

	return cmd.Fn(ctx, argv[1:])
}
