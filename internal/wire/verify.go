// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "github.com/zcmd-io/zcmd/pkg/iobuf"

// VerifierFor returns the schema verifier for a frame type tag, or nil for
// an unrecognized type (the dispatcher treats a nil verifier as "unknown
// type", tearing the link down per spec §4.8).
func VerifierFor(t iobuf.Type) iobuf.Verifier {
	switch t {
	case iobuf.TypeLogin:
		return func(body []byte) error { _, err := DecodeLoginReq(body); return err }
	case iobuf.TypeUserDB:
		return func(body []byte) error { _, err := DecodeUserDBReq(body); return err }
	case iobuf.TypeCmd:
		return func(body []byte) error { _, err := DecodeCmdReq(body); return err }
	case iobuf.TypeTelReq:
		return func(body []byte) error { _, err := DecodeTelReq(body); return err }
	case iobuf.TypeTelemetry:
		return func(body []byte) error { _, err := DecodeTelemetryFrame(body); return err }
	default:
		return nil
	}
}
