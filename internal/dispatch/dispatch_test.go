// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zcmd-io/zcmd/pkg/iobuf"
)

type fakeSender struct{ sent [][]byte }

func (f *fakeSender) Send(frame []byte) error {
	f.sent = append(f.sent, frame)
	return nil
}

func TestDispatchInvokesInstalledHandler(t *testing.T) {
	tbl := NewServerTable()
	var gotSeq uint64
	var gotBody []byte
	tbl.Install(iobuf.TypeCmd, func(link Sender, seqNo uint64, body []byte) int {
		gotSeq = seqNo
		gotBody = body
		return 0
	})

	sender := &fakeSender{}
	code := tbl.Dispatch(sender, iobuf.TypeCmd, 5, []byte("argv"))
	require.Equal(t, 0, code)
	require.Equal(t, uint64(5), gotSeq)
	require.Equal(t, []byte("argv"), gotBody)
}

func TestDispatchUnknownTypeReturnsNegativeOneWithoutInvoking(t *testing.T) {
	tbl := NewServerTable()
	invoked := false
	tbl.Install(iobuf.TypeCmd, func(link Sender, seqNo uint64, body []byte) int {
		invoked = true
		return 0
	})

	sender := &fakeSender{}
	code := tbl.Dispatch(sender, iobuf.TypeTelemetry, 1, nil)
	require.Equal(t, -1, code)
	require.False(t, invoked)
}
