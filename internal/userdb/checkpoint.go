// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package userdb

import (
	"fmt"
	"os"

	"github.com/pquerna/otp/totp"

	"github.com/zcmd-io/zcmd/pkg/log"
)

// Save atomically rewrites the database file at m.path to path, rotating
// up to maxAge numbered backups (path.1 is the newest, path.maxAge the
// oldest, each shift discarding whatever was in the last slot). The
// VACUUM INTO snapshot is written under the read lock; the rename-based
// rotation runs without the lock, so writers can make progress once the
// snapshot file exists.
func (m *Manager) Save(path string, maxAge int) error {
	m.mu.RLock()
	tmp := path + ".tmp"
	_, err := m.db.Exec(fmt.Sprintf("VACUUM INTO %s", quoteSQLiteLiteral(tmp)))
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("userdb: checkpoint snapshot: %w", err)
	}

	for age := maxAge; age >= 1; age-- {
		from := backupPath(path, age-1)
		to := backupPath(path, age)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if age == maxAge {
			os.Remove(to)
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("userdb: rotate backup %s -> %s: %w", from, to, err)
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("userdb: finalize checkpoint: %w", err)
	}

	m.clearDirty()
	log.Infof("USERDB > checkpoint written to %s", path)
	return nil
}

// Load opens the database at path, falling back to path.1 if path is
// missing or fails to open (e.g. a checkpoint was interrupted mid-write).
func Load(path string) (*Manager, error) {
	if _, err := os.Stat(path); err == nil {
		if m, err := Open(path); err == nil {
			return m, nil
		}
	}
	return Open(path + ".1")
}

func backupPath(path string, age int) string {
	if age == 0 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, age)
}

func quoteSQLiteLiteral(s string) string {
	return "'" + s + "'"
}

// Bootstrap creates a single admin role holding every permission and a
// single user in that role, returning a freshly generated password and
// TOTP secret for one-time disclosure to the operator. Only meaningful
// on an otherwise empty database.
func Bootstrap(m *Manager, user, role string) (passwd string, totpSecret string, err error) {
	var allPerms Perms256
	for i := range allPerms {
		allPerms[i] = 0xff
	}

	if err := m.AddRole(role, allPerms, allPerms); err != nil {
		return "", "", err
	}

	key, genErr := totp.Generate(totp.GenerateOpts{Issuer: "zcmd", AccountName: user})
	if genErr != nil {
		return "", "", fmt.Errorf("userdb: bootstrap totp: %w", genErr)
	}

	u, err := m.AddUser(user, []string{role}, key.Secret())
	if err != nil {
		return "", "", err
	}

	passwd = randomPassword(m.cfg.PassLen)
	m.mu.Lock()
	_, err = updatePasswordLocked(m, u.ID, passwd)
	if err == nil {
		// Force a password change before the one-time generated password
		// can be used for anything but ChPass itself.
		err = m.setFlagsLocked(u.ID, u.Flags|FlagChPass)
	}
	m.mu.Unlock()
	if err != nil {
		return "", "", err
	}

	return passwd, key.Secret(), nil
}

func randomPassword(length int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	if length <= 0 {
		length = 24
	}
	b := randomBytes(length)
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = alphabet[int(c)%len(alphabet)]
	}
	return string(out)
}
