// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zcmd-io/zcmd/internal/client"
	"github.com/zcmd-io/zcmd/internal/reactor"
	"github.com/zcmd-io/zcmd/internal/tlslink"
	"github.com/zcmd-io/zcmd/internal/wire"
	"github.com/zcmd-io/zcmd/pkg/log"
)

var (
	flagAddr      string
	flagUser      string
	flagPasswd    string
	flagTOTP      string
	flagAPIKeyID  string
	flagAPISecret string
	flagInsecure  bool
	flagLogLevel  string
)

func cliInit() {
	flag.StringVar(&flagAddr, "addr", "127.0.0.1:7777", "zcmd server address, host:port")
	flag.StringVar(&flagUser, "user", "", "interactive login: username")
	flag.StringVar(&flagPasswd, "passwd", "", "interactive login: password")
	flag.StringVar(&flagTOTP, "totp", "", "interactive login: current 6-digit TOTP code")
	flag.StringVar(&flagAPIKeyID, "key-id", "", "API login: key id")
	flag.StringVar(&flagAPISecret, "key-secret", "", "API login: hex-encoded key secret")
	flag.BoolVar(&flagInsecure, "insecure", false, "skip TLS certificate verification")
	flag.StringVar(&flagLogLevel, "loglevel", "warn", "sets the logging level: [debug, info, notice, warn, err, crit]")
	flag.Parse()
}

func main() {
	cliInit()
	log.SetLogLevel(flagLogLevel)

	argv := flag.Args()
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "usage: zcmdctl [flags] <command> [args...]")
		os.Exit(2)
	}

	rt := reactor.New()
	rt.AddSlot("cli")
	defer rt.Stop()

	tlsCfg := tlslink.Config{TLS: &tls.Config{InsecureSkipVerify: flagInsecure}}
	cc := client.New(tlsCfg, rt, "cli")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := login(ctx, cc); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	defer cc.Close()

	code, out, err := runCmd(cc, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
	os.Exit(int(code))
}

func login(ctx context.Context, cc *client.Conn) error {
	if flagAPIKeyID != "" {
		secret, err := hex.DecodeString(flagAPISecret)
		if err != nil {
			return fmt.Errorf("decode key-secret: %w", err)
		}
		return cc.Access(ctx, flagAddr, flagAPIKeyID, secret)
	}

	user := flagUser
	passwd := flagPasswd
	totpStr := flagTOTP
	reader := bufio.NewReader(os.Stdin)
	if user == "" {
		fmt.Fprint(os.Stderr, "user: ")
		user, _ = reader.ReadString('\n')
		user = strings.TrimSpace(user)
	}
	if passwd == "" {
		fmt.Fprint(os.Stderr, "password: ")
		passwd, _ = reader.ReadString('\n')
		passwd = strings.TrimSpace(passwd)
	}
	if totpStr == "" {
		fmt.Fprint(os.Stderr, "totp: ")
		totpStr, _ = reader.ReadString('\n')
		totpStr = strings.TrimSpace(totpStr)
	}

	totp, err := strconv.ParseUint(totpStr, 10, 32)
	if err != nil {
		return fmt.Errorf("bad totp code %q: %w", totpStr, err)
	}

	return cc.Login(ctx, flagAddr, user, passwd, uint32(totp))
}

func runCmd(cc *client.Conn, argv []string) (int32, string, error) {
	done := make(chan *wire.ReqAck, 1)
	if err := cc.SendCmd(argv, func(ack *wire.ReqAck) { done <- ack }); err != nil {
		return 0, "", err
	}
	select {
	case ack := <-done:
		return ack.Code, ack.Out, nil
	case <-time.After(30 * time.Second):
		return 0, "", fmt.Errorf("timed out waiting for reply")
	}
}
