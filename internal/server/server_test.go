// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/zcmd-io/zcmd/internal/client"
	"github.com/zcmd-io/zcmd/internal/cmdhost"
	"github.com/zcmd-io/zcmd/internal/reactor"
	"github.com/zcmd-io/zcmd/internal/tlslink"
	"github.com/zcmd-io/zcmd/internal/userdb"
	"github.com/zcmd-io/zcmd/internal/wire"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "zcmd-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// TestLoginThenCommandGoldenPath exercises the scenario from the login
// and command-dispatch walkthrough: bootstrap an admin user, log in
// interactively, and run a registered command through the ack path.
func TestLoginThenCommandGoldenPath(t *testing.T) {
	users, err := userdb.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { users.Close() })

	passwd, secret, err := userdb.Bootstrap(users, "admin", "admin")
	require.NoError(t, err)

	cmds := cmdhost.New(userdb.PermZCmd)
	cmds.Register(&cmdhost.Command{
		Name:   "help",
		PermID: userdb.PermZCmd,
		Fn: func(ctx context.Context, argv []string) cmdhost.Result {
			return cmdhost.Result{Code: 0, Out: "available commands: help\n"}
		},
	})

	rt := reactor.New()
	rt.AddSlot("srv")
	rt.AddSlot("cli")
	t.Cleanup(rt.Stop)

	cert := selfSignedCert(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = Accept(conn, tlslink.Config{TLS: &tls.Config{Certificates: []tls.Certificate{cert}}}, rt, "srv", users, cmds)
	}()

	cc := client.New(tlslink.Config{TLS: &tls.Config{InsecureSkipVerify: true}}, rt, "cli")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	totpCode := code
	var totpNum uint32
	for _, c := range totpCode {
		totpNum = totpNum*10 + uint32(c-'0')
	}

	require.NoError(t, cc.Login(ctx, ln.Addr().String(), "admin", passwd, totpNum))
	t.Cleanup(func() { cc.Close() })

	require.NotNil(t, cc.User)
	require.True(t, cc.User.OK)
	require.Equal(t, "admin", cc.User.Name)

	// The bootstrapped user carries ChPass until the password is changed,
	// so the command is expected to be denied rather than run.
	ackCh := make(chan *wire.ReqAck, 1)
	require.NoError(t, cc.SendCmd([]string{"help"}, func(ack *wire.ReqAck) { ackCh <- ack }))

	select {
	case ack := <-ackCh:
		require.NotEqual(t, int32(0), ack.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("no ack received")
	}
}
