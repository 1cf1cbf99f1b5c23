// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

// LoginKind selects which credential shape a LoginReq carries (spec §4.10:
// "login(user, pw, totp) or access(keyID, secret)").
type LoginKind uint8

const (
	LoginInteractive LoginKind = iota
	LoginAPIAccess
)

// LoginReq is the first frame a client must send after connecting.
type LoginReq struct {
	Kind LoginKind

	// LoginInteractive fields.
	User   string
	Passwd string
	TOTP   uint32

	// LoginAPIAccess fields.
	KeyID string
	Token []byte // 32 random bytes
	Stamp int64  // unix seconds
	HMAC  []byte // HMAC-SHA256(secret, token‖stamp_le64), 32 bytes
}

func (r *LoginReq) Encode() []byte {
	e := encoder{}
	e.u8(uint8(r.Kind))
	switch r.Kind {
	case LoginInteractive:
		e.str(r.User)
		e.str(r.Passwd)
		e.u32(r.TOTP)
	case LoginAPIAccess:
		e.str(r.KeyID)
		e.bytes(r.Token)
		e.i64(r.Stamp)
		e.bytes(r.HMAC)
	}
	return e.buf
}

func DecodeLoginReq(buf []byte) (*LoginReq, error) {
	d := decoder{buf: buf}
	kindByte, err := d.u8()
	if err != nil {
		return nil, err
	}
	r := &LoginReq{Kind: LoginKind(kindByte)}
	switch r.Kind {
	case LoginInteractive:
		if r.User, err = d.str(); err != nil {
			return nil, err
		}
		if r.Passwd, err = d.str(); err != nil {
			return nil, err
		}
		if r.TOTP, err = d.u32(); err != nil {
			return nil, err
		}
	case LoginAPIAccess:
		if r.KeyID, err = d.str(); err != nil {
			return nil, err
		}
		if r.Token, err = d.bytesField(); err != nil {
			return nil, err
		}
		if r.Stamp, err = d.i64(); err != nil {
			return nil, err
		}
		if r.HMAC, err = d.bytesField(); err != nil {
			return nil, err
		}
	default:
		return nil, ErrTruncated
	}
	return r, nil
}

// LoginAck answers a LoginReq.
type LoginAck struct {
	OK      bool
	ID      uint64
	Name    string
	Roles   []string
	Perms   []byte // 256-bit permission bitmap, 32 bytes
	Flags   uint32
	Message string
}

func (a *LoginAck) Encode() []byte {
	e := encoder{}
	e.bool(a.OK)
	e.u64(a.ID)
	e.str(a.Name)
	e.strs(a.Roles)
	e.bytes(a.Perms)
	e.u32(a.Flags)
	e.str(a.Message)
	return e.buf
}

func DecodeLoginAck(buf []byte) (*LoginAck, error) {
	d := decoder{buf: buf}
	a := &LoginAck{}
	var err error
	if a.OK, err = d.boolean(); err != nil {
		return nil, err
	}
	if a.ID, err = d.u64(); err != nil {
		return nil, err
	}
	if a.Name, err = d.str(); err != nil {
		return nil, err
	}
	if a.Roles, err = d.strs(); err != nil {
		return nil, err
	}
	if a.Perms, err = d.bytesField(); err != nil {
		return nil, err
	}
	if a.Flags, err = d.u32(); err != nil {
		return nil, err
	}
	if a.Message, err = d.str(); err != nil {
		return nil, err
	}
	return a, nil
}
