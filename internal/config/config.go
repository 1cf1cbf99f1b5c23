// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the server's ProgramConfig:
// JSON on disk, overridable by a local .env file, validated against an
// inline JSON schema before use.
package config

import (
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zcmd-io/zcmd/pkg/log"
)

// ProgramConfig is the on-disk configuration for zcmdd; zcmdctl takes its
// settings from command-line flags only.
type ProgramConfig struct {
	// Addr is the TCP address the server listens on for the zcmd wire
	// protocol ("host:port").
	Addr string `json:"addr"`

	// AdminAddr is where the sibling HTTP admin surface (healthz,
	// metrics, bootstrap disclosure) listens.
	AdminAddr string `json:"admin-addr"`

	// CertFile/KeyFile are the TLS server certificate and key.
	CertFile string `json:"cert-file"`
	KeyFile  string `json:"key-file"`

	// UserDB is the path to the sqlite user database file.
	UserDB string `json:"user-db"`

	// CheckpointInterval is a duration string (e.g. "5m") on which the
	// user DB is checkpointed if modified.
	CheckpointInterval string `json:"checkpoint-interval"`
	CheckpointMaxAge   int    `json:"checkpoint-max-age"`

	// LogLevel is one of the pkg/log level names.
	LogLevel string `json:"log-level"`

	// ReactorSlots names the reactor worker slots to create at startup.
	ReactorSlots []string `json:"reactor-slots"`
}

const schemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["addr", "user-db"],
	"properties": {
		"addr": {"type": "string", "minLength": 1},
		"admin-addr": {"type": "string"},
		"cert-file": {"type": "string"},
		"key-file": {"type": "string"},
		"user-db": {"type": "string", "minLength": 1},
		"checkpoint-interval": {"type": "string"},
		"checkpoint-max-age": {"type": "integer", "minimum": 0},
		"log-level": {"type": "string"},
		"reactor-slots": {"type": "array", "items": {"type": "string"}}
	}
}`

// Load reads path as JSON, validates the file against the config schema,
// then applies the ZCMD_ADDR and ZCMD_USER_DB environment overrides (which
// a ".env" file in the working directory may set) and returns the result.
// The overridden values are not validated.
func Load(path string) (*ProgramConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("CONFIG > could not load .env: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	cfg := &ProgramConfig{
		AdminAddr:          "127.0.0.1:8081",
		CheckpointInterval: "5m",
		CheckpointMaxAge:   5,
		LogLevel:           "info",
		ReactorSlots:       []string{"io"},
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("ZCMD_ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := os.LookupEnv("ZCMD_USER_DB"); ok {
		cfg.UserDB = v
	}

	return cfg, nil
}

func validate(instance []byte) error {
	sch, err := jsonschema.CompileString("zcmd-config.json", schemaJSON)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}
