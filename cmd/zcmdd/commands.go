// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"github.com/zcmd-io/zcmd/internal/cmdhost"
	"github.com/zcmd-io/zcmd/internal/userdb"
)

// registerBuiltinCommands installs the small set of commands every
// deployment gets for free: help and version. Site-specific commands
// are registered the same way from elsewhere before the accept loop
// starts.
func registerBuiltinCommands(h *cmdhost.Host) {
	names := []string{"help", "version"}

	h.Register(&cmdhost.Command{
		Name:   "version",
		PermID: userdb.PermAccess,
		Fn: func(ctx context.Context, argv []string) cmdhost.Result {
			return cmdhost.Result{Code: 0, Out: "zcmdd (" + runtime.Version() + ")\n"}
		},
	})

	h.Register(&cmdhost.Command{
		Name:   "help",
		PermID: userdb.PermAccess,
		Fn: func(ctx context.Context, argv []string) cmdhost.Result {
			sort.Strings(names)
			return cmdhost.Result{Code: 0, Out: "available commands: " + strings.Join(names, ", ") + "\n"}
		},
	})
}
