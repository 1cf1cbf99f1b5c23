// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package iobuf

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed length of the frame header: length(u32) + type(u16) + seqNo(u64).
const HeaderSize = 4 + 2 + 8

// DefaultMaxMessage bounds the payload length of a single frame.
const DefaultMaxMessage = 1 << 20 // 1 MiB

// Type is the wire type tag of a framed message.
type Type uint16

const (
	TypeLogin Type = iota + 1
	TypeUserDB
	TypeCmd
	TypeTelReq
	TypeTelemetry
)

func (t Type) String() string {
	switch t {
	case TypeLogin:
		return "login"
	case TypeUserDB:
		return "userDB"
	case TypeCmd:
		return "cmd"
	case TypeTelReq:
		return "telReq"
	case TypeTelemetry:
		return "telemetry"
	default:
		return "unknown"
	}
}

var (
	ErrBadFrame = errors.New("[FRAME]> truncated frame")
	ErrBadType  = errors.New("[FRAME]> unknown frame type")
	ErrOversize = errors.New("[FRAME]> frame exceeds max message size")
)

// Header is the decoded fixed-size frame prefix.
type Header struct {
	Length uint32
	Type   Type
	SeqNo  uint64
}

// Verifier validates that body is a well-formed payload of the declared type,
// before the frame is handed to the dispatcher. A payload package supplies
// one of these per Type (wire does so through wire.VerifierFor).
type Verifier func(body []byte) error

// Encode writes a header in front of an already-built payload, using
// reserved head room (Buf.Prepend), and returns the buffer ready to send.
func Encode(body *Buf, typ Type, seqNo uint64) *Buf {
	hdr := body.Prepend(HeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(body.Length()-HeaderSize))
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(typ))
	binary.LittleEndian.PutUint64(hdr[6:14], seqNo)
	return body
}

// Decode parses the header of buf and validates the payload against the
// type-specific verifier. maxMessage<=0 uses DefaultMaxMessage.
func Decode(buf []byte, maxMessage int, verify func(Type) Verifier) (Header, []byte, error) {
	if maxMessage <= 0 {
		maxMessage = DefaultMaxMessage
	}
	if len(buf) < HeaderSize {
		return Header{}, nil, ErrBadFrame
	}
	hdr := Header{
		Length: binary.LittleEndian.Uint32(buf[0:4]),
		Type:   Type(binary.LittleEndian.Uint16(buf[4:6])),
		SeqNo:  binary.LittleEndian.Uint64(buf[6:14]),
	}
	if int(hdr.Length) > maxMessage {
		return hdr, nil, ErrOversize
	}
	if len(buf) < HeaderSize+int(hdr.Length) {
		return hdr, nil, ErrBadFrame
	}
	body := buf[HeaderSize : HeaderSize+int(hdr.Length)]
	v := verify(hdr.Type)
	if v == nil {
		return hdr, nil, ErrBadType
	}
	if err := v(body); err != nil {
		return hdr, nil, err
	}
	return hdr, body, nil
}

// Rx accumulates bytes delivered across TLS read callbacks and splits them
// into framed messages. It owns a rolling receive buffer across callbacks,
// as required by the TLS link (§4.7).
type Rx struct {
	buf        []byte
	maxMessage int
}

// NewRx constructs a receive-side frame splitter. maxMessage<=0 uses the default.
func NewRx(maxMessage int) *Rx {
	if maxMessage <= 0 {
		maxMessage = DefaultMaxMessage
	}
	return &Rx{maxMessage: maxMessage}
}

// Feed appends newly received bytes and returns every complete frame now
// available; any incomplete remainder is buffered internally for the next
// call.
func (r *Rx) Feed(data []byte, verify func(Type) Verifier) ([]struct {
	Hdr  Header
	Body []byte
}, error) {
	r.buf = append(r.buf, data...)
	var out []struct {
		Hdr  Header
		Body []byte
	}
	for {
		if len(r.buf) < HeaderSize {
			break
		}
		length := binary.LittleEndian.Uint32(r.buf[0:4])
		if int(length) > r.maxMessage {
			return out, ErrOversize
		}
		total := HeaderSize + int(length)
		if len(r.buf) < total {
			break
		}
		hdr, body, err := Decode(r.buf[:total], r.maxMessage, verify)
		if err != nil {
			return out, err
		}
		// Body aliases r.buf; copy it out since r.buf is about to be shifted.
		cp := make([]byte, len(body))
		copy(cp, body)
		out = append(out, struct {
			Hdr  Header
			Body []byte
		}{hdr, cp})
		r.buf = r.buf[total:]
	}
	return out, nil
}
