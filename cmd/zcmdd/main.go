// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/gops/agent"

	"github.com/zcmd-io/zcmd/internal/adminhttp"
	"github.com/zcmd-io/zcmd/internal/cmdhost"
	"github.com/zcmd-io/zcmd/internal/config"
	"github.com/zcmd-io/zcmd/internal/reactor"
	"github.com/zcmd-io/zcmd/internal/server"
	"github.com/zcmd-io/zcmd/internal/tlslink"
	"github.com/zcmd-io/zcmd/internal/userdb"
	"github.com/zcmd-io/zcmd/pkg/log"
)

func main() {
	configPath := flag.String("config", "zcmdd.json", "path to the server config file")
	flagGops := flag.Bool("gops", false, "listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetLogLevel(cfg.LogLevel)

	if *flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	users, err := userdb.Open(cfg.UserDB)
	if err != nil {
		log.Fatalf("userdb: %v", err)
	}
	defer users.Close()

	var bootUser, bootPasswd, bootTOTP string
	if _, err := users.GetRole("admin"); err != nil {
		bootUser = "admin"
		bootPasswd, bootTOTP, err = userdb.Bootstrap(users, bootUser, "admin")
		if err != nil {
			log.Fatalf("bootstrap: %v", err)
		}
		log.Notef("USERDB > bootstrapped admin user, credentials available once at /bootstrap")
	}

	cmds := cmdhost.New(userdb.PermZCmd)
	registerBuiltinCommands(cmds)

	rt := reactor.New()
	for _, slot := range cfg.ReactorSlots {
		rt.AddSlot(slot)
	}
	defer rt.Stop()

	tlsCfg, err := loadServerTLS(cfg)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Addr, err)
	}
	log.Infof("SERVER > listening on %s", cfg.Addr)

	go acceptLoop(ln, tlsCfg, rt, cfg.ReactorSlots, users, cmds)

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	registerCheckpointJob(sched, users, cfg)
	sched.Start()
	defer sched.Shutdown()

	admin := adminhttp.New(users, bootUser, bootPasswd, bootTOTP)
	adminSrv := &http.Server{Addr: cfg.AdminAddr, Handler: admin.Handler()}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("admin http: %v", err)
		}
	}()

	waitForSignal()
	log.Info("SERVER > shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	adminSrv.Shutdown(ctx)
	ln.Close()
}

func loadServerTLS(cfg *config.ProgramConfig) (tlslink.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		log.Warnf("SERVER > no cert/key configured, generating an ephemeral self-signed certificate")
		cert, err := ephemeralCert()
		if err != nil {
			return tlslink.Config{}, err
		}
		return tlslink.Config{TLS: &tls.Config{Certificates: []tls.Certificate{cert}}}, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return tlslink.Config{}, err
	}
	return tlslink.Config{TLS: &tls.Config{Certificates: []tls.Certificate{cert}}}, nil
}

func acceptLoop(ln net.Listener, tlsCfg tlslink.Config, rt *reactor.Reactor, slots []string, users *userdb.Manager, cmds *cmdhost.Host) {
	next := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		slot := slots[next%len(slots)]
		next++
		if _, err := server.Accept(conn, tlsCfg, rt, slot, users, cmds); err != nil {
			log.Warnf("SERVER > accept: %v", err)
			conn.Close()
		}
	}
}

func registerCheckpointJob(sched gocron.Scheduler, users *userdb.Manager, cfg *config.ProgramConfig) {
	d, err := time.ParseDuration(cfg.CheckpointInterval)
	if err != nil {
		log.Warnf("SERVER > bad checkpoint-interval %q, defaulting to 5m", cfg.CheckpointInterval)
		d = 5 * time.Minute
	}

	_, err = sched.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(func() {
			if !users.Modified() {
				return
			}
			if err := users.Save(cfg.UserDB, cfg.CheckpointMaxAge); err != nil {
				log.Errorf("SERVER > checkpoint failed: %v", err)
			}
		}),
	)
	if err != nil {
		log.Errorf("SERVER > failed to register checkpoint job: %v", err)
	}
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
