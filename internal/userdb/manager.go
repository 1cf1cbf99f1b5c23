// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package userdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zcmd-io/zcmd/pkg/log"
)

// Config bundles the operator-tunable knobs a Manager is built with. Zero
// values are replaced by sane defaults in New, so callers that only care
// about the database path can pass Config{Path: path}.
type Config struct {
	// Path is the sqlite database file to open (created and migrated if
	// missing).
	Path string

	// PassLen is the length, in characters, of passwords generated by
	// Bootstrap and password resets.
	PassLen int

	// TOTPRange is the number of 30-second steps of clock skew either
	// side of "now" that a submitted TOTP code is still accepted in.
	TOTPRange uint

	// KeyInterval bounds how far an API key's signed timestamp may drift
	// from server time before Access rejects it as stale.
	KeyInterval time.Duration

	// MaxSize caps the number of user accounts AddUser will create. Zero
	// means unbounded.
	MaxSize int
}

func (c Config) withDefaults() Config {
	if c.PassLen <= 0 {
		c.PassLen = 24
	}
	if c.TOTPRange == 0 {
		c.TOTPRange = 1
	}
	if c.KeyInterval == 0 {
		c.KeyInterval = 30 * time.Second
	}
	return c
}

// Manager owns the user database connection. Mutations take the lock for
// write, and so do Login and Access, which update failure counters;
// lookups take it for read; checkpointing writes its snapshot under the
// read lock and rotates backups without holding it. Manager is safe for
// concurrent use.
type Manager struct {
	mu    sync.RWMutex
	db    *sqlx.DB
	path  string
	cfg   Config
	dirty bool
}

// New opens (creating and migrating if necessary) the user database named
// by cfg.Path and returns a Manager ready to serve logins and CRUD
// operations, configured per cfg.
func New(cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("userdb: Config.Path must not be empty")
	}
	cfg = cfg.withDefaults()

	db, err := openSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Manager{db: db, path: cfg.Path, cfg: cfg}, nil
}

// Open is New with every knob defaulted, for callers that only need a
// database path.
func Open(path string) (*Manager, error) {
	return New(Config{Path: path})
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Close()
}

// Modified reports whether any mutation has happened since the last
// successful checkpoint.
func (m *Manager) Modified() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

func (m *Manager) markDirty() {
	m.dirty = true
}

func (m *Manager) clearDirty() {
	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
}

func (m *Manager) logf(format string, v ...interface{}) {
	log.Debugf("USERDB > "+format, v...)
}
