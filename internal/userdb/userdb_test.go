// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package userdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	m, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestPerms256SetTestClear(t *testing.T) {
	var p Perms256
	require.False(t, p.Test(PermLogin))
	p.Set(PermLogin)
	require.True(t, p.Test(PermLogin))
	p.Clear(PermLogin)
	require.False(t, p.Test(PermLogin))
}

func TestPerms256Or(t *testing.T) {
	var a, b Perms256
	a.Set(1)
	b.Set(2)
	a.Or(b)
	require.True(t, a.Test(1))
	require.True(t, a.Test(2))
}

func TestBootstrapThenLoginSucceeds(t *testing.T) {
	m := openTestManager(t)

	passwd, secret, err := Bootstrap(m, "admin", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, passwd)
	require.NotEmpty(t, secret)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	u, err := m.Login("admin", passwd, code)
	require.NoError(t, err)
	require.Equal(t, "admin", u.Name)
	require.True(t, u.Perms.Test(0))
}

func TestLoginFailureIncrementsFailures(t *testing.T) {
	m := openTestManager(t)
	_, secret, err := Bootstrap(m, "admin", "admin")
	require.NoError(t, err)

	code, _ := totp.GenerateCode(secret, time.Now())
	_, err = m.Login("admin", "wrong-password", code)
	require.ErrorIs(t, err, ErrBadCredential)

	u, err := m.GetUser("admin")
	require.NoError(t, err)
	require.Equal(t, uint32(1), u.Failures)
}

func TestAccessRoundTripWithAPIKey(t *testing.T) {
	m := openTestManager(t)
	u, err := m.AddUser("svc", nil, "")
	require.NoError(t, err)

	keyID, secret, err := m.AddAPIKey(u.ID)
	require.NoError(t, err)

	token := randomBytes(32)
	stamp := time.Now().Unix()
	var stampLE [8]byte
	for i := 0; i < 8; i++ {
		stampLE[i] = byte(stamp >> (8 * i))
	}
	mac := hmacSHA256(secret, append(append([]byte{}, token...), stampLE[:]...))

	got, err := m.Access(keyID, token, stamp, mac)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestAccessRejectsStaleStamp(t *testing.T) {
	m := openTestManager(t)
	u, err := m.AddUser("svc", nil, "")
	require.NoError(t, err)
	keyID, secret, err := m.AddAPIKey(u.ID)
	require.NoError(t, err)

	token := randomBytes(32)
	stale := time.Now().Add(-time.Hour).Unix()
	var stampLE [8]byte
	for i := 0; i < 8; i++ {
		stampLE[i] = byte(stale >> (8 * i))
	}
	mac := hmacSHA256(secret, append(append([]byte{}, token...), stampLE[:]...))

	_, err = m.Access(keyID, token, stale, mac)
	require.ErrorIs(t, err, ErrStaleStamp)
}

func TestAllowedDeniesEverythingButChPassWhenSet(t *testing.T) {
	var perms Perms256
	perms.Set(PermChPass)
	perms.Set(PermZCmd)
	u := &User{Flags: FlagChPass, Perms: perms}

	require.False(t, Allowed(u, true, PermZCmd))
	require.True(t, Allowed(u, true, PermChPass))
}

func TestRolePermsGrantPropagatesToUser(t *testing.T) {
	m := openTestManager(t)
	var none Perms256
	require.NoError(t, m.AddRole("operator", none, none))

	u, err := m.AddUser("alice", []string{"operator"}, "")
	require.NoError(t, err)
	require.False(t, u.Perms.Test(5))

	var extra Perms256
	extra.Set(5)
	require.NoError(t, m.UpdateRolePerms("operator", extra, false))

	u2, err := m.GetUser("alice")
	require.NoError(t, err)
	require.True(t, u2.Perms.Test(5))
}

func TestMaxSizeCapsUserCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	m, err := New(Config{Path: path, MaxSize: 1})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	_, err = m.AddUser("first", nil, "")
	require.NoError(t, err)

	_, err = m.AddUser("second", nil, "")
	require.Error(t, err)
}

func TestPassLenControlsBootstrapPasswordLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	m, err := New(Config{Path: path, PassLen: 40})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	passwd, _, err := Bootstrap(m, "admin", "admin")
	require.NoError(t, err)
	require.Len(t, passwd, 40)
}

func TestSaveCheckpointsAndRotatesBackups(t *testing.T) {
	m := openTestManager(t)
	_, err := m.AddUser("bob", nil, "")
	require.NoError(t, err)

	dir := t.TempDir()
	dest := filepath.Join(dir, "backup.db")

	require.True(t, m.Modified())
	require.NoError(t, m.Save(dest, 3))
	require.False(t, m.Modified())

	_, err = m.AddUser("carol", nil, "")
	require.NoError(t, err)
	require.NoError(t, m.Save(dest, 3))
}
