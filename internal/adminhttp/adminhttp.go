// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adminhttp is the sibling HTTP surface for operational concerns
// (health, metrics, one-time bootstrap credential reveal). It is not the
// zcmd wire protocol, which stays TLS+framed end to end.
package adminhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zcmd-io/zcmd/internal/userdb"
)

var (
	linksUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zcmd_links_up",
		Help: "Number of connections currently in the Up state.",
	})
	loginFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zcmd_login_failures_total",
		Help: "Total number of failed login attempts across all links.",
	})
)

func init() {
	prometheus.MustRegister(linksUp, loginFailures)
}

func IncLinksUp()       { linksUp.Inc() }
func DecLinksUp()       { linksUp.Dec() }
func IncLoginFailures() { loginFailures.Inc() }

// bootstrapCredential is disclosed exactly once over /bootstrap and then
// forgotten.
type bootstrapCredential struct {
	mu       sync.Mutex
	user     string
	passwd   string
	totp     string
	revealed bool
}

func (b *bootstrapCredential) take() (user, passwd, totp string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revealed || b.user == "" {
		return "", "", "", false
	}
	b.revealed = true
	return b.user, b.passwd, b.totp, true
}

// Server is the admin HTTP surface: /healthz, /metrics, and a one-time
// /bootstrap credential reveal.
type Server struct {
	router *mux.Router
	users  *userdb.Manager
	cred   *bootstrapCredential
}

// New builds the admin router. If user/passwd/totp are non-empty, a
// single GET to /bootstrap will disclose them once.
func New(users *userdb.Manager, user, passwd, totp string) *Server {
	s := &Server{
		router: mux.NewRouter(),
		users:  users,
		cred:   &bootstrapCredential{user: user, passwd: passwd, totp: totp},
	}

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/bootstrap", s.handleBootstrap).Methods(http.MethodGet)

	s.router.Use(handlers.CompressHandler)
	s.router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))

	return s
}

func (s *Server) Handler() http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, s.router, func(io.Writer, handlers.LogFormatterParams) {})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	user, passwd, totp, ok := s.cred.take()
	if !ok {
		http.Error(w, "bootstrap credential already revealed or not applicable", http.StatusGone)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user": user, "password": passwd, "totp_secret": totp,
	})
}
