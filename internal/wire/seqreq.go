// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

// CmdReq carries an argv vector plus the sequence number the ack echoes
// (spec §4.12).
type CmdReq struct {
	SeqNo uint64
	Argv  []string
}

func (r *CmdReq) Encode() []byte {
	e := encoder{}
	e.u64(r.SeqNo)
	e.strs(r.Argv)
	return e.buf
}

func DecodeCmdReq(buf []byte) (*CmdReq, error) {
	d := decoder{buf: buf}
	r := &CmdReq{}
	var err error
	if r.SeqNo, err = d.u64(); err != nil {
		return nil, err
	}
	if r.Argv, err = d.strs(); err != nil {
		return nil, err
	}
	return r, nil
}

// UserDBReq invokes one user-DB operation by name with string arguments
// (user/role/permission/API-key CRUD; spec §4.11).
type UserDBReq struct {
	SeqNo uint64
	Op    string
	Args  []string
}

func (r *UserDBReq) Encode() []byte {
	e := encoder{}
	e.u64(r.SeqNo)
	e.str(r.Op)
	e.strs(r.Args)
	return e.buf
}

func DecodeUserDBReq(buf []byte) (*UserDBReq, error) {
	d := decoder{buf: buf}
	r := &UserDBReq{}
	var err error
	if r.SeqNo, err = d.u64(); err != nil {
		return nil, err
	}
	if r.Op, err = d.str(); err != nil {
		return nil, err
	}
	if r.Args, err = d.strs(); err != nil {
		return nil, err
	}
	return r, nil
}

// ReqAck is the common {code, out} ack shape shared by CmdReq and
// UserDBReq (spec §4.12: "capturing {code, text}, and echoes them in a
// ReqAck").
type ReqAck struct {
	SeqNo uint64
	Code  int32
	Out   string
}

func (a *ReqAck) Encode() []byte {
	e := encoder{}
	e.u64(a.SeqNo)
	e.i64(int64(a.Code))
	e.str(a.Out)
	return e.buf
}

func DecodeReqAck(buf []byte) (*ReqAck, error) {
	d := decoder{buf: buf}
	a := &ReqAck{}
	var err error
	if a.SeqNo, err = d.u64(); err != nil {
		return nil, err
	}
	var code int64
	if code, err = d.i64(); err != nil {
		return nil, err
	}
	a.Code = int32(code)
	if a.Out, err = d.str(); err != nil {
		return nil, err
	}
	return a, nil
}

// TelReq selects which telemetry record classes to stream (spec §4.5, §4.8).
type TelReq struct {
	SeqNo uint64
	Types uint32 // telemetry.ReqType bitmap
}

func (r *TelReq) Encode() []byte {
	e := encoder{}
	e.u64(r.SeqNo)
	e.u32(r.Types)
	return e.buf
}

func DecodeTelReq(buf []byte) (*TelReq, error) {
	d := decoder{buf: buf}
	r := &TelReq{}
	var err error
	if r.SeqNo, err = d.u64(); err != nil {
		return nil, err
	}
	if r.Types, err = d.u32(); err != nil {
		return nil, err
	}
	return r, nil
}
