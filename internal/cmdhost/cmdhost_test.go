// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmdhost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zcmd-io/zcmd/internal/userdb"
)

func allPermsUser() *userdb.User {
	var perms userdb.Perms256
	for i := range perms {
		perms[i] = 0xff
	}
	return &userdb.User{ID: 1, Name: "admin", Flags: userdb.FlagEnabled, Perms: perms, APIPerms: perms}
}

func TestInvokeRunsRegisteredCommand(t *testing.T) {
	h := New(userdb.PermZCmd)
	h.Register(&Command{
		Name:   "help",
		PermID: userdb.PermZCmd,
		Fn: func(ctx context.Context, argv []string) Result {
			return Result{Code: 0, Out: "available commands\n"}
		},
	})

	res := h.Invoke(context.Background(), allPermsUser(), true, []string{"help"})
	require.Equal(t, int32(0), res.Code)
	require.Equal(t, "available commands\n", res.Out)
}

func TestInvokeDeniesUnknownCommand(t *testing.T) {
	h := New(userdb.PermZCmd)
	res := h.Invoke(context.Background(), allPermsUser(), true, []string{"nope"})
	require.NotEqual(t, int32(0), res.Code)
}

func TestInvokeDeniesWhileChPassPending(t *testing.T) {
	h := New(userdb.PermZCmd)
	h.Register(&Command{Name: "help", PermID: userdb.PermZCmd, Fn: func(ctx context.Context, argv []string) Result {
		return Result{Code: 0}
	}})

	u := allPermsUser()
	u.Flags |= userdb.FlagChPass
	res := h.Invoke(context.Background(), u, true, []string{"help"})
	require.Equal(t, int32(-1), res.Code)
	require.Contains(t, res.Out, "change password")
}

func TestInvokeEmptyArgvIsUsageError(t *testing.T) {
	h := New(userdb.PermZCmd)
	res := h.Invoke(context.Background(), allPermsUser(), true, nil)
	require.Equal(t, int32(-1), res.Code)
}
