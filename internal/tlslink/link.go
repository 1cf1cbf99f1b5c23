// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tlslink wraps a TCP connection with TLS 1.2+ and ALPN fixed to
// "zcmd" (spec §4.7). The framing layer above it owns the rolling receive
// buffer; this package only delivers raw bytes and ferries outbound frames
// through a bounded, backpressured send queue.
package tlslink

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/zcmd-io/zcmd/pkg/log"
)

// ALPNProto is the only protocol either side will negotiate.
const ALPNProto = "zcmd"

// ErrALPNMismatch is returned when the peer does not offer/accept ALPNProto.
var ErrALPNMismatch = errors.New("[TLSLINK]> ALPN mismatch")

// ProcessFunc consumes bytes delivered off the wire and reports how many
// were consumed. A mismatch between len(data) and the returned count is
// treated as a framing-layer protocol error and tears the link down.
type ProcessFunc func(data []byte) (consumed int)

// Config bundles the knobs needed to construct a Link.
type Config struct {
	TLS *tls.Config

	// SendQueueHighWater is the depth at which telemetry pushes for this
	// link should be dropped (spec §5: backpressure).
	SendQueueHighWater int
	// SendQueueLowWater is the depth the queue must drain below before
	// telemetry re-snapshots.
	SendQueueLowWater int
	// SendQueueCapacity bounds the queue; Send blocks once it is full.
	SendQueueCapacity int
	// EgressRateLimit paces outbound frame writes (frames/sec); zero
	// disables pacing.
	EgressRateLimit float64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.SendQueueCapacity == 0 {
		out.SendQueueCapacity = 256
	}
	if out.SendQueueHighWater == 0 {
		out.SendQueueHighWater = out.SendQueueCapacity * 3 / 4
	}
	if out.SendQueueLowWater == 0 {
		out.SendQueueLowWater = out.SendQueueCapacity / 4
	}
	return out
}

// Link is one TLS-wrapped connection.
type Link struct {
	conn    *tls.Conn
	onData  ProcessFunc
	cfg     Config
	limiter *rate.Limiter

	mu        sync.Mutex
	sendQueue [][]byte
	closed    bool

	sendCond *sync.Cond

	onLowWater func() // invoked once when queue depth drops back below LowWater
	lowFired   bool
}

// Server completes a TLS server handshake over conn, verifying ALPN, and
// starts the read loop calling onData for each chunk received.
func Server(conn net.Conn, cfg Config, onData ProcessFunc) (*Link, error) {
	cfg = cfg.withDefaults()
	tlsCfg := cfg.TLS.Clone()
	tlsCfg.NextProtos = []string{ALPNProto}
	tc := tls.Server(conn, tlsCfg)
	if err := tc.HandshakeContext(context.Background()); err != nil {
		tc.Close()
		return nil, err
	}
	if tc.ConnectionState().NegotiatedProtocol != ALPNProto {
		tc.Close()
		return nil, ErrALPNMismatch
	}
	return newLink(tc, cfg, onData), nil
}

// Dial connects to addr, performs a TLS client handshake offering only
// ALPNProto, and starts the read loop.
func Dial(ctx context.Context, addr string, cfg Config, onData ProcessFunc) (*Link, error) {
	cfg = cfg.withDefaults()
	tlsCfg := cfg.TLS.Clone()
	tlsCfg.NextProtos = []string{ALPNProto}
	d := &tls.Dialer{Config: tlsCfg}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	tc := c.(*tls.Conn)
	if tc.ConnectionState().NegotiatedProtocol != ALPNProto {
		tc.Close()
		return nil, ErrALPNMismatch
	}
	return newLink(tc, cfg, onData), nil
}

func newLink(tc *tls.Conn, cfg Config, onData ProcessFunc) *Link {
	l := &Link{conn: tc, onData: onData, cfg: cfg, lowFired: true}
	l.sendCond = sync.NewCond(&l.mu)
	if cfg.EgressRateLimit > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.EgressRateLimit), int(cfg.EgressRateLimit))
	}
	go l.readLoop()
	go l.writeLoop()
	return l
}

// OnLowWater registers a callback fired once each time the send queue drains
// from ≥high-water back down below low-water.
func (l *Link) OnLowWater(fn func()) {
	l.mu.Lock()
	l.onLowWater = fn
	l.mu.Unlock()
}

// Backpressured reports whether the send queue is at or above high-water,
// the signal telemetry push uses to start dropping records for this link.
func (l *Link) Backpressured() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sendQueue) >= l.cfg.SendQueueHighWater
}

func (l *Link) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := l.conn.Read(buf)
		if n > 0 {
			consumed := l.onData(buf[:n])
			if consumed != n {
				log.Errorf("TLSLINK > process() consumed %d of %d bytes, disconnecting", consumed, n)
				l.Close()
				return
			}
		}
		if err != nil {
			l.Close()
			return
		}
	}
}

// Send enqueues a framed message, blocking the caller if the queue is at
// capacity until the network drains (spec §5: backpressure).
func (l *Link) Send(frame []byte) error {
	l.mu.Lock()
	for len(l.sendQueue) >= l.cfg.SendQueueCapacity && !l.closed {
		l.sendCond.Wait()
	}
	if l.closed {
		l.mu.Unlock()
		return net.ErrClosed
	}
	l.sendQueue = append(l.sendQueue, frame)
	l.mu.Unlock()
	l.sendCond.Signal()
	return nil
}

func (l *Link) writeLoop() {
	for {
		l.mu.Lock()
		for len(l.sendQueue) == 0 && !l.closed {
			l.sendCond.Wait()
		}
		if l.closed && len(l.sendQueue) == 0 {
			l.mu.Unlock()
			return
		}
		frame := l.sendQueue[0]
		l.sendQueue = l.sendQueue[1:]
		depth := len(l.sendQueue)
		l.mu.Unlock()
		l.sendCond.Signal() // wake any Send blocked on capacity

		l.maybeFireLowWater(depth)

		if l.limiter != nil {
			_ = l.limiter.WaitN(context.Background(), 1)
		}
		if _, err := l.conn.Write(frame); err != nil {
			l.Close()
			return
		}
	}
}

func (l *Link) maybeFireLowWater(depth int) {
	l.mu.Lock()
	var fn func()
	if depth >= l.cfg.SendQueueHighWater {
		l.lowFired = false
	} else if depth < l.cfg.SendQueueLowWater && !l.lowFired {
		l.lowFired = true
		fn = l.onLowWater
	}
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close tears down the underlying connection and wakes any blocked Send.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	l.sendCond.Broadcast()
	return l.conn.Close()
}

// RemoteAddr returns the underlying connection's remote address.
func (l *Link) RemoteAddr() net.Addr { return l.conn.RemoteAddr() }
