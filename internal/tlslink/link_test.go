// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tlslink

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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
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

func listenTLSServer(t *testing.T, onData ProcessFunc) net.Listener {
	cert := selfSignedCert(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = Server(conn, Config{TLS: &tls.Config{Certificates: []tls.Certificate{cert}}}, onData)
	}()
	return ln
}

func TestALPNHandshakeSucceedsWithZcmd(t *testing.T) {
	var serverGot []byte
	serverDone := make(chan struct{})
	ln := listenTLSServer(t, func(data []byte) int {
		serverGot = append(serverGot, data...)
		close(serverDone)
		return len(data)
	})
	defer ln.Close()

	var clientGot []byte
	client, err := Dial(context.Background(), ln.Addr().String(), Config{
		TLS: &tls.Config{InsecureSkipVerify: true},
	}, func(data []byte) int {
		clientGot = append(clientGot, data...)
		return len(data)
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send([]byte("hello")))

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received data")
	}
	require.Equal(t, "hello", string(serverGot))
	_ = clientGot
}

func TestALPNMismatchRejectsHandshake(t *testing.T) {
	cert := selfSignedCert(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = Server(conn, Config{TLS: &tls.Config{Certificates: []tls.Certificate{cert}}}, func([]byte) int { return 0 })
	}()

	rawConn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"not-zcmd"},
	})
	if err == nil {
		state := rawConn.ConnectionState()
		require.NotEqual(t, ALPNProto, state.NegotiatedProtocol)
		rawConn.Close()
	}
}

func TestSendBlocksAtCapacityAndDrainsOnReceive(t *testing.T) {
	received := make(chan struct{}, 100)
	ln := listenTLSServer(t, func(data []byte) int {
		received <- struct{}{}
		return len(data)
	})
	defer ln.Close()

	client, err := Dial(context.Background(), ln.Addr().String(), Config{
		TLS:               &tls.Config{InsecureSkipVerify: true},
		SendQueueCapacity: 2,
	}, func([]byte) int { return 0 })
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, client.Send([]byte("x")))
	}

	deadline := time.After(2 * time.Second)
	count := 0
	for count < 5 {
		select {
		case <-received:
			count++
		case <-deadline:
			t.Fatalf("only received %d/5 frames", count)
		}
	}
}
