// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package client implements the client-side connection state machine:
// Down -> Login -> Up. Requests sent while Up allocate a monotonic seqNo
// and register an ack callback keyed by it; a disconnect drops pending
// callbacks without invoking them.
package client

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zcmd-io/zcmd/internal/reactor"
	"github.com/zcmd-io/zcmd/internal/tlslink"
	"github.com/zcmd-io/zcmd/internal/wire"
	"github.com/zcmd-io/zcmd/pkg/iobuf"
	"github.com/zcmd-io/zcmd/pkg/log"
)

type State int

const (
	StateDown State = iota
	StateLogin
	StateUp
)

const loginTimeout = 15 * time.Second

type ackCallback func(*wire.ReqAck)

// Conn is a client-side connection to a server.
type Conn struct {
	cfg  tlslink.Config
	rt   *reactor.Reactor
	slot string

	link *tlslink.Link
	rx   *iobuf.Rx

	mu      sync.Mutex
	state   State
	seqNo   uint64
	pending map[uint64]ackCallback

	loginTimer *reactor.Timer
	loginDone  func(*wire.LoginAck, error)

	User *wire.LoginAck
	onUp func(*wire.LoginAck)
}

// New creates a client connection bound to the given reactor slot. The
// slot must already exist; all FSM and handler work for this Conn runs
// there, serialized with every other task on it.
func New(cfg tlslink.Config, rt *reactor.Reactor, slot string) *Conn {
	return &Conn{
		cfg:        cfg,
		rt:         rt,
		slot:       slot,
		rx:         iobuf.NewRx(0),
		pending:    make(map[uint64]ackCallback),
		loginTimer: reactor.NewTimer(),
	}
}

// OnLoggedIn registers a callback fired once the LoginAck arrives and the
// connection transitions to Up.
func (c *Conn) OnLoggedIn(fn func(*wire.LoginAck)) {
	c.onUp = fn
}

func randomToken() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// Login connects to addr and authenticates interactively.
func (c *Conn) Login(ctx context.Context, addr, user, passwd string, totp uint32) error {
	req := &wire.LoginReq{Kind: wire.LoginInteractive, User: user, Passwd: passwd, TOTP: totp}
	return c.connect(ctx, addr, req)
}

// Access connects to addr and authenticates with a long-lived API key.
func (c *Conn) Access(ctx context.Context, addr, keyID string, secret []byte) error {
	token := randomToken()
	stamp := time.Now().Unix()
	var stampLE [8]byte
	binary.LittleEndian.PutUint64(stampLE[:], uint64(stamp))
	mac := hmacSHA256(secret, append(append([]byte{}, token...), stampLE[:]...))

	req := &wire.LoginReq{Kind: wire.LoginAPIAccess, KeyID: keyID, Token: token, Stamp: stamp, HMAC: mac}
	return c.connect(ctx, addr, req)
}

func (c *Conn) connect(ctx context.Context, addr string, req *wire.LoginReq) error {
	link, err := tlslink.Dial(ctx, addr, c.cfg, func(data []byte) int {
		c.rt.Run(c.slot, func() { c.onData(data) })
		return len(data)
	})
	if err != nil {
		return err
	}
	c.link = link
	c.state = StateLogin

	done := make(chan error, 1)
	var once sync.Once
	c.rt.Run(c.slot, func() {
		c.loginTimer = c.rt.RunAt(c.slot, func() {
			once.Do(func() { done <- fmt.Errorf("client: login timed out") })
			c.link.Close()
		}, time.Now().Add(loginTimeout), reactor.TimerUpdate, c.loginTimer)

		c.loginDone = func(ack *wire.LoginAck, err error) {
			once.Do(func() {
				if err != nil {
					done <- err
					return
				}
				c.User = ack
				c.state = StateUp
				if c.onUp != nil {
					c.onUp(ack)
				}
				done <- nil
			})
		}

		if err := c.send(iobuf.TypeLogin, 0, req.Encode()); err != nil {
			once.Do(func() { done <- err })
		}
	})

	return <-done
}

func (c *Conn) onData(data []byte) {
	// The server answers with LoginAck and ReqAck bodies, not the request
	// bodies that wire.VerifierFor checks.
	frames, err := c.rx.Feed(data, func(t iobuf.Type) iobuf.Verifier {
		switch t {
		case iobuf.TypeLogin:
			return func(body []byte) error { _, err := wire.DecodeLoginAck(body); return err }
		case iobuf.TypeUserDB, iobuf.TypeCmd, iobuf.TypeTelReq:
			return func(body []byte) error { _, err := wire.DecodeReqAck(body); return err }
		default:
			return nil
		}
	})
	if err != nil {
		log.Warnf("CLIENT > frame error: %v", err)
		c.Close()
		return
	}

	for _, f := range frames {
		switch {
		case c.state == StateLogin && f.Hdr.Type == iobuf.TypeLogin:
			ack, err := wire.DecodeLoginAck(f.Body)
			reactor.Del(c.loginTimer)
			if c.loginDone != nil {
				c.loginDone(ack, err)
			}
		case c.state == StateUp:
			c.dispatchAck(f.Hdr.Type, f.Hdr.SeqNo, f.Body)
		default:
			c.Close()
			return
		}
	}
}

func (c *Conn) dispatchAck(t iobuf.Type, seqNo uint64, body []byte) {
	ack, err := wire.DecodeReqAck(body)
	if err != nil {
		log.Warnf("CLIENT > bad ack for seq %d: %v", seqNo, err)
		return
	}

	c.mu.Lock()
	cb, ok := c.pending[seqNo]
	delete(c.pending, seqNo)
	c.mu.Unlock()

	if ok {
		cb(ack)
	}
}

func (c *Conn) nextSeqNo() uint64 {
	return atomic.AddUint64(&c.seqNo, 1)
}

func (c *Conn) register(seqNo uint64, cb ackCallback) {
	c.mu.Lock()
	c.pending[seqNo] = cb
	c.mu.Unlock()
}

// SendCmd allocates a seqNo, registers cb against it and emits a cmd
// request.
func (c *Conn) SendCmd(argv []string, cb func(*wire.ReqAck)) error {
	seqNo := c.nextSeqNo()
	c.register(seqNo, cb)
	req := &wire.CmdReq{SeqNo: seqNo, Argv: argv}
	return c.send(iobuf.TypeCmd, seqNo, req.Encode())
}

// SendUserDB allocates a seqNo, registers cb against it and emits a
// userDB request.
func (c *Conn) SendUserDB(op string, args []string, cb func(*wire.ReqAck)) error {
	seqNo := c.nextSeqNo()
	c.register(seqNo, cb)
	req := &wire.UserDBReq{SeqNo: seqNo, Op: op, Args: args}
	return c.send(iobuf.TypeUserDB, seqNo, req.Encode())
}

// SendTelReq allocates a seqNo and subscribes to the given record types.
// Telemetry replies are pushed asynchronously rather than acked once, so
// no callback is registered here.
func (c *Conn) SendTelReq(types uint32) error {
	seqNo := c.nextSeqNo()
	req := &wire.TelReq{SeqNo: seqNo, Types: types}
	return c.send(iobuf.TypeTelReq, seqNo, req.Encode())
}

func (c *Conn) send(t iobuf.Type, seqNo uint64, payload []byte) error {
	buf := iobuf.FromBytes(payload)
	frame := iobuf.Encode(buf, t, seqNo)
	return c.link.Send(frame.Bytes())
}

// Close tears the link down. Pending ack callbacks are dropped, not
// invoked: callers must treat unacked requests as indeterminate.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.pending = make(map[uint64]ackCallback)
	c.state = StateDown
	c.mu.Unlock()
	reactor.Del(c.loginTimer)
	if c.link != nil {
		return c.link.Close()
	}
	return nil
}
