// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zcmd-io/zcmd/internal/reactor"
	"github.com/zcmd-io/zcmd/internal/tlslink"
	"github.com/zcmd-io/zcmd/internal/wire"
)

func TestCloseClearsPendingCallbacksWithoutInvoking(t *testing.T) {
	rt := reactor.New()
	rt.AddSlot("cli")
	t.Cleanup(rt.Stop)

	c := New(tlslink.Config{}, rt, "cli")
	invoked := false
	c.register(1, func(*wire.ReqAck) { invoked = true })

	require.NoError(t, c.Close())

	c.mu.Lock()
	count := len(c.pending)
	c.mu.Unlock()
	require.Equal(t, 0, count)
	require.False(t, invoked)
}

func TestNextSeqNoIsMonotonic(t *testing.T) {
	rt := reactor.New()
	rt.AddSlot("cli")
	t.Cleanup(rt.Stop)

	c := New(tlslink.Config{}, rt, "cli")
	a := c.nextSeqNo()
	b := c.nextSeqNo()
	require.Less(t, a, b)
}
