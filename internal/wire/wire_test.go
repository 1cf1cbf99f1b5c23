// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zcmd-io/zcmd/pkg/telemetry"
)

func TestLoginReqInteractiveRoundTrip(t *testing.T) {
	req := &LoginReq{Kind: LoginInteractive, User: "admin", Passwd: "hunter2", TOTP: 123456}
	got, err := DecodeLoginReq(req.Encode())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestLoginReqAPIAccessRoundTrip(t *testing.T) {
	req := &LoginReq{
		Kind:  LoginAPIAccess,
		KeyID: "key-1",
		Token: []byte("01234567890123456789012345678901"[:32]),
		Stamp: 1700000000,
		HMAC:  make([]byte, 32),
	}
	got, err := DecodeLoginReq(req.Encode())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestLoginAckRoundTrip(t *testing.T) {
	ack := &LoginAck{
		OK: true, ID: 1, Name: "admin", Roles: []string{"admin"},
		Perms: make([]byte, 32), Flags: 3, Message: "",
	}
	got, err := DecodeLoginAck(ack.Encode())
	require.NoError(t, err)
	require.Equal(t, ack, got)
}

func TestCmdReqAndReqAckRoundTrip(t *testing.T) {
	req := &CmdReq{SeqNo: 7, Argv: []string{"help"}}
	gotReq, err := DecodeCmdReq(req.Encode())
	require.NoError(t, err)
	require.Equal(t, req, gotReq)

	ack := &ReqAck{SeqNo: 7, Code: 0, Out: "ok\n"}
	gotAck, err := DecodeReqAck(ack.Encode())
	require.NoError(t, err)
	require.Equal(t, ack, gotAck)
}

func TestUserDBReqRoundTrip(t *testing.T) {
	req := &UserDBReq{SeqNo: 3, Op: "ownKeyAdd", Args: []string{}}
	got, err := DecodeUserDBReq(req.Encode())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestTelReqRoundTrip(t *testing.T) {
	var types telemetry.ReqType
	types = types.Add(telemetry.RecordHeap)
	req := &TelReq{SeqNo: 9, Types: uint32(types)}
	got, err := DecodeTelReq(req.Encode())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestEncodeDecodeRecordHeap(t *testing.T) {
	h := &telemetry.Heap{ID: 1, Partition: 2, Size: 4096, CacheSize: 2048, CacheAllocs: 10, HeapAllocs: 3, Frees: 1}
	buf := EncodeRecord(h)
	decoded, err := DecodeRecord(telemetry.RecordHeap, buf)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestEncodeDecodeRecordThreadFloat(t *testing.T) {
	th := &telemetry.Thread{TID: 42, CPU: 0.625}
	buf := EncodeRecord(th)
	decoded, err := DecodeRecord(telemetry.RecordThread, buf)
	require.NoError(t, err)
	require.Equal(t, th, decoded)
}

func TestEncodeDecodeRecordAlertStrings(t *testing.T) {
	a := &telemetry.Alert{Time: 1700000000, SeqNo: 1, Level: "warn", Message: "queue high water"}
	buf := EncodeRecord(a)
	decoded, err := DecodeRecord(telemetry.RecordAlert, buf)
	require.NoError(t, err)
	require.Equal(t, a, decoded)
}

func TestTelemetryFrameRoundTrip(t *testing.T) {
	h := &telemetry.Heap{ID: 1, Partition: 0, Size: 100}
	f := &TelemetryFrame{RecordType: telemetry.RecordHeap, Key: "1:0:100", Payload: EncodeRecord(h)}
	got, err := DecodeTelemetryFrame(f.Encode())
	require.NoError(t, err)
	require.Equal(t, f.RecordType, got.RecordType)
	require.Equal(t, f.Key, got.Key)
	decoded, err := DecodeRecord(got.RecordType, got.Payload)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestVerifierForUnknownTypeIsNil(t *testing.T) {
	require.Nil(t, VerifierFor(0))
}
