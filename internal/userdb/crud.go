// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package userdb

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/zcmd-io/zcmd/pkg/log"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	return b
}

// AddRole creates a role with the given permission bitmaps. Fails if the
// name is already taken.
func (m *Manager) AddRole(name string, perms, apiperms Perms256) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := sq.Insert("role").Columns("name", "perms", "apiperms").
		Values(name, perms.Bytes(), apiperms.Bytes()).RunWith(m.db).Exec()
	if err != nil {
		return fmt.Errorf("userdb: add role %s: %w", name, err)
	}
	m.markDirty()
	log.Infof("USERDB > role %q created", name)
	return nil
}

func (m *Manager) getRole(name string) (*Role, error) {
	var perms, apiperms []byte
	role := &Role{Name: name}
	err := sq.Select("perms", "apiperms").From("role").Where(sq.Eq{"name": name}).
		RunWith(m.db).QueryRow().Scan(&perms, &apiperms)
	if err != nil {
		return nil, err
	}
	role.Perms = PermsFromBytes(perms)
	role.APIPerms = PermsFromBytes(apiperms)
	return role, nil
}

// GetRole looks up a role by name.
func (m *Manager) GetRole(name string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRole(name)
}

// UpdateRolePerms ORs extra into the role's perms (or apiperms) bitmap.
// Users' effective permissions are derived from their roles on every
// lookup, so members see the change at once.
func (m *Manager) UpdateRolePerms(name string, extra Perms256, api bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, err := m.getRole(name)
	if err != nil {
		return fmt.Errorf("userdb: update role %s: %w", name, err)
	}

	if api {
		role.APIPerms.Or(extra)
	} else {
		role.Perms.Or(extra)
	}

	if _, err := sq.Update("role").
		Set("perms", role.Perms.Bytes()).Set("apiperms", role.APIPerms.Bytes()).
		Where(sq.Eq{"name": name}).RunWith(m.db).Exec(); err != nil {
		return fmt.Errorf("userdb: update role %s: %w", name, err)
	}

	// perms/apiperms are not denormalized onto the user row: getUserLocked
	// recomputes them from current role membership on every read, so a
	// role's permission change is visible to its members immediately.
	m.markDirty()
	return nil
}

// AddUser creates a user in the given roles with a freshly generated HMAC
// secret and the given TOTP secret, and returns the new User. No password
// is set: the user's HMAC stays empty until one is set (SetPassword).
func (m *Manager) AddUser(name string, roles []string, totpSecret string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSize > 0 {
		var count int
		if err := sq.Select("count(*)").From("user").RunWith(m.db).QueryRow().Scan(&count); err != nil {
			return nil, fmt.Errorf("userdb: count users: %w", err)
		}
		if count >= m.cfg.MaxSize {
			return nil, fmt.Errorf("userdb: user database at capacity (%d)", m.cfg.MaxSize)
		}
	}

	secret := randomBytes(32)
	u := &User{
		Name:       name,
		Secret:     secret,
		TOTPSecret: totpSecret,
		Flags:      FlagEnabled,
		Roles:      roles,
	}

	res, err := sq.Insert("user").
		Columns("name", "secret", "hmac", "totp_secret", "flags", "failures").
		Values(name, secret, []byte{}, totpSecret, uint32(u.Flags), 0).
		RunWith(m.db).Exec()
	if err != nil {
		return nil, fmt.Errorf("userdb: add user %s: %w", name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	u.ID = uint64(id)

	for _, r := range roles {
		if _, err := sq.Insert("user_role").Columns("user_id", "role_name").
			Values(u.ID, r).RunWith(m.db).Exec(); err != nil {
			return nil, fmt.Errorf("userdb: grant role %s to %s: %w", r, name, err)
		}
	}

	m.markDirty()
	log.Infof("USERDB > user %q created (roles: %v)", name, roles)
	return u, nil
}

func (m *Manager) getUserLocked(name string) (*User, error) {
	u := &User{Name: name}
	var flags uint32
	err := sq.Select("id", "secret", "hmac", "totp_secret", "flags", "failures").
		From("user").Where(sq.Eq{"name": name}).RunWith(m.db).
		QueryRow().Scan(&u.ID, &u.Secret, &u.HMAC, &u.TOTPSecret, &flags, &u.Failures)
	if err != nil {
		return nil, err
	}
	u.Flags = UserFlags(flags)

	rows, err := sq.Select("role_name").From("user_role").Where(sq.Eq{"user_id": u.ID}).
		RunWith(m.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		u.Roles = append(u.Roles, r)
		role, err := m.getRole(r)
		if err != nil {
			return nil, err
		}
		u.Perms.Or(role.Perms)
		u.APIPerms.Or(role.APIPerms)
	}
	return u, nil
}

// GetUser looks up a user by name, with roles and materialized perms.
func (m *Manager) GetUser(name string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getUserLocked(name)
}

func (m *Manager) getUserByID(id uint64) (*User, error) {
	var name string
	if err := sq.Select("name").From("user").Where(sq.Eq{"id": id}).
		RunWith(m.db).QueryRow().Scan(&name); err != nil {
		return nil, err
	}
	return m.getUserLocked(name)
}

// incFailuresLocked bumps a user's failure counter. Caller must hold the
// write lock.
func (m *Manager) incFailuresLocked(id uint64, n uint32) error {
	_, err := sq.Update("user").Set("failures", sq.Expr("failures + ?", n)).
		Where(sq.Eq{"id": id}).RunWith(m.db).Exec()
	return err
}

func (m *Manager) resetFailuresLocked(id uint64) error {
	_, err := sq.Update("user").Set("failures", 0).
		Where(sq.Eq{"id": id}).RunWith(m.db).Exec()
	return err
}

func (m *Manager) setFlagsLocked(id uint64, flags UserFlags) error {
	_, err := sq.Update("user").Set("flags", uint32(flags)).
		Where(sq.Eq{"id": id}).RunWith(m.db).Exec()
	return err
}

// SetPassword resets a user's secret and HMAC to match a new password,
// as happens on password reset: secret is regenerated so a leaked old
// HMAC cannot be replayed against the new password.
func (m *Manager) SetPassword(userID uint64, passwd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := updatePasswordLocked(m, userID, passwd)
	return err
}

func updatePasswordLocked(m *Manager, userID uint64, passwd string) (sql.Result, error) {
	secret := randomBytes(32)
	mac := hmacSHA256(secret, []byte(passwd))
	res, err := sq.Update("user").Set("secret", secret).Set("hmac", mac).
		Where(sq.Eq{"id": userID}).RunWith(m.db).Exec()
	if err != nil {
		return nil, fmt.Errorf("userdb: set password for user %d: %w", userID, err)
	}
	m.markDirty()
	return res, nil
}

// AddAPIKey generates a new API key secret for user and stores it,
// returning the key id and the raw secret for one-time disclosure.
func (m *Manager) AddAPIKey(userID uint64) (keyID string, secret []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keyID = uuid.NewString()
	secret = randomBytes(32)

	_, err = sq.Insert("api_key").Columns("key_id", "user_id", "secret", "created_at").
		Values(keyID, userID, secret, time.Now().Unix()).RunWith(m.db).Exec()
	if err != nil {
		return "", nil, fmt.Errorf("userdb: add api key for user %d: %w", userID, err)
	}
	m.markDirty()
	return keyID, secret, nil
}

func (m *Manager) getAPIKeyLocked(keyID string) (*APIKey, error) {
	k := &APIKey{KeyID: keyID}
	var createdAt int64
	err := sq.Select("user_id", "secret", "created_at").From("api_key").
		Where(sq.Eq{"key_id": keyID}).RunWith(m.db).
		QueryRow().Scan(&k.UserID, &k.Secret, &createdAt)
	if err != nil {
		return nil, err
	}
	k.CreatedAt = time.Unix(createdAt, 0)
	return k, nil
}

func (m *Manager) DelAPIKey(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := sq.Delete("api_key").Where(sq.Eq{"key_id": keyID}).RunWith(m.db).Exec()
	if err != nil {
		return err
	}
	m.markDirty()
	return nil
}
