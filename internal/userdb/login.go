// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package userdb

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrUnknownUser   = errors.New("userdb: no such user")
	ErrDisabled      = errors.New("userdb: account disabled")
	ErrBadCredential = errors.New("userdb: credential mismatch")
	ErrUnknownKey    = errors.New("userdb: no such api key")
	ErrStaleStamp    = errors.New("userdb: stamp outside accepted window")
)

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// Login authenticates an interactive {user, passwd, totp} credential. A
// password or TOTP mismatch increments the found user's failure counter;
// an unknown or disabled user is rejected without touching any counter.
// On failure the returned user is nil.
func (m *Manager) Login(user, passwd string, totpCode string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.getUserLocked(user)
	if err != nil {
		return nil, ErrUnknownUser
	}
	if u.Flags&FlagEnabled == 0 {
		return nil, ErrDisabled
	}

	test := hmacSHA256(u.Secret, []byte(passwd))
	if !hmac.Equal(test, u.HMAC) {
		_ = m.incFailuresLocked(u.ID, 1)
		return nil, ErrBadCredential
	}

	if !totpValidateWithSkew(totpCode, u.TOTPSecret, m.cfg.TOTPRange) {
		_ = m.incFailuresLocked(u.ID, 1)
		return nil, ErrBadCredential
	}

	if err := m.resetFailuresLocked(u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func totpValidateWithSkew(code, secret string, skewSteps uint) bool {
	opts := totp.ValidateOpts{
		Period:    30,
		Skew:      skewSteps,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
	ok, _ := totp.ValidateCustom(code, secret, time.Now(), opts)
	return ok
}

// Access authenticates an {keyID, token, stamp, hmac} API credential.
func (m *Manager) Access(keyID string, token []byte, stamp int64, mac []byte) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := m.getAPIKeyLocked(keyID)
	if err != nil {
		return nil, ErrUnknownKey
	}

	now := time.Now().Unix()
	drift := now - stamp
	if drift < 0 {
		drift = -drift
	}
	if time.Duration(drift)*time.Second > m.cfg.KeyInterval {
		return nil, ErrStaleStamp
	}

	var stampLE [8]byte
	binary.LittleEndian.PutUint64(stampLE[:], uint64(stamp))
	test := hmacSHA256(key.Secret, append(append([]byte{}, token...), stampLE[:]...))
	if !hmac.Equal(test, mac) {
		u, uerr := m.getUserByID(key.UserID)
		if uerr == nil {
			_ = m.incFailuresLocked(u.ID, 1)
		}
		return nil, ErrBadCredential
	}

	return m.getUserByID(key.UserID)
}

// Allowed implements ok(user, interactive, perm): if the user has ChPass
// set and is logging in interactively, every permission but ChPass is
// denied until the password has been changed.
func Allowed(u *User, interactive bool, perm int) bool {
	if u.Flags&FlagChPass != 0 && interactive && perm != PermChPass {
		return false
	}
	if interactive {
		return u.Perms.Test(perm)
	}
	return u.APIPerms.Test(perm)
}
