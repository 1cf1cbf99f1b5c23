// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package userdb

import "time"

type Role struct {
	Name     string `db:"name"`
	Perms    Perms256
	APIPerms Perms256
	Immutable bool
}

type User struct {
	ID         uint64 `db:"id"`
	Name       string `db:"name"`
	Secret     []byte `db:"secret"`
	HMAC       []byte `db:"hmac"`
	TOTPSecret string `db:"totp_secret"`
	Flags      UserFlags
	Failures   uint32

	Roles []string

	// Perms/APIPerms are materialized by OR-ing the perm bitmaps of
	// Roles; recomputed each time the user is looked up.
	Perms    Perms256
	APIPerms Perms256
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type APIKey struct {
	KeyID     string `db:"key_id"`
	UserID    uint64 `db:"user_id"`
	Secret    []byte `db:"secret"`
	CreatedAt time.Time
}
