/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package catchall keeps a listening socket on every unclaimed port of a range and records
// whatever a peer sends to it. Individual ports can be lent to a decoy service and returned.
package catchall

import (
	"context"
	"errors"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/limiter"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/metrics"
	"github.com/honeygrove/honeygrove/pkg/models"
)

const (
	acceptBackoff = 50 * time.Millisecond

	leaseReleased = "released"
	leaseAcquired = "acquired"
)

// ListenFunc binds a stream listener. net.Listen is used unless overridden.
type ListenFunc func(network, address string) (net.Listener, error)

// Config describes the sockets a Listener maintains.
type Config struct {
	Address            string
	Ports              []int
	ConnectionsPerHost int
	ReadTimeout        time.Duration
	MaxReadBytes       int
}

// ConfigFrom expands a catch-all config section bound to address.
func ConfigFrom(address string, cfg models.CatchAllConfig) Config {
	return Config{
		Address:            address,
		Ports:              cfg.Ports(),
		ConnectionsPerHost: cfg.ConnectionsPerHost,
		ReadTimeout:        time.Duration(cfg.ReadTimeout),
		MaxReadBytes:       cfg.MaxReadBytes,
	}
}

type Option func(*Listener)

// WithListenFunc replaces the function used to bind each port.
func WithListenFunc(fn ListenFunc) Option {
	return func(l *Listener) {
		l.listen = fn
	}
}

// Listener is the catch-all service. It is registered with the supervisor as LISTEN.
type Listener struct {
	cfg      Config
	recorder events.Recorder
	limiter  *limiter.Limiter
	logger   logger.Logger
	listen   ListenFunc

	covered map[int]struct{}

	mu     sync.Mutex
	active bool
	bound  map[int]net.Listener
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, recorder events.Recorder, log logger.Logger, opts ...Option) *Listener {
	if cfg.ConnectionsPerHost <= 0 {
		cfg.ConnectionsPerHost = models.DefaultMaxConnectionsPerHost
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = models.DefaultReadTimeout
	}

	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = models.DefaultMaxReadBytes
	}

	l := &Listener{
		cfg:      cfg,
		recorder: recorder,
		limiter:  limiter.New(models.CatchAllServiceName, cfg.ConnectionsPerHost, recorder, log),
		logger:   log,
		listen:   net.Listen,
		covered:  make(map[int]struct{}, len(cfg.Ports)),
		bound:    make(map[int]net.Listener),
		conns:    make(map[net.Conn]struct{}),
	}

	for _, port := range cfg.Ports {
		l.covered[port] = struct{}{}
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (*Listener) Name() string {
	return models.CatchAllServiceName
}

func (l *Listener) Address() string {
	return l.cfg.Address
}

// Port is zero: the catch-all owns a set of ports, not a single one.
func (*Listener) Port() int {
	return 0
}

// Limiter exposes the admission limiter shared by all catch-all ports.
func (l *Listener) Limiter() *limiter.Limiter {
	return l.limiter
}

func (l *Listener) Start(_ context.Context) error {
	l.StartAll()

	return nil
}

func (l *Listener) Stop(_ context.Context) error {
	l.StopAll()

	return nil
}

// StartAll binds every configured port not already held. Ports that cannot be bound are
// logged and skipped.
func (l *Listener) StartAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	failed := 0

	for _, port := range l.cfg.Ports {
		if _, ok := l.bound[port]; ok {
			continue
		}

		if err := l.bindLocked(port); err != nil {
			failed++

			l.logger.Debug().Err(err).Int("port", port).Msg("Catch-all could not bind port")
		}
	}

	l.active = true

	l.logger.Info().
		Int("bound", len(l.bound)).
		Int("skipped", failed).
		Msg("Catch-all listener started")
}

// StopAll unbinds every port, closes open probe connections and waits for their handlers.
func (l *Listener) StopAll() {
	l.mu.Lock()

	for port, ln := range l.bound {
		_ = ln.Close()

		delete(l.bound, port)
	}

	for conn := range l.conns {
		_ = conn.Close()
	}

	l.active = false
	l.mu.Unlock()

	l.wg.Wait()

	l.logger.Info().Msg("Catch-all listener stopped")
}

// ReleasePort unbinds port so another service can take it. It is a no-op when the listener
// is inactive or the port is not bound.
func (l *Listener) ReleasePort(port int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	ln, ok := l.bound[port]
	if !ok {
		return
	}

	_ = ln.Close()

	delete(l.bound, port)

	metrics.RecordPortLease(context.Background(), port, leaseReleased)

	l.logger.Debug().Int("port", port).Msg("Catch-all released port")
}

// AcquirePort rebinds port. It is a no-op when the listener is inactive, already holds
// the port or the port lies outside its range; a bind failure is logged and leaves the
// port unbound.
func (l *Listener) AcquirePort(port int) {
	if _, ok := l.covered[port]; !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}

	if _, ok := l.bound[port]; ok {
		return
	}

	if err := l.bindLocked(port); err != nil {
		l.logger.Warn().Err(err).Int("port", port).Msg("Catch-all could not reacquire port")

		return
	}

	metrics.RecordPortLease(context.Background(), port, leaseAcquired)

	l.logger.Debug().Int("port", port).Msg("Catch-all acquired port")
}

// Active reports whether StartAll has run without a matching StopAll.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.active
}

// Bound reports whether the listener currently holds port.
func (l *Listener) Bound(port int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.bound[port]

	return ok
}

// BoundPorts returns the held ports in ascending order.
func (l *Listener) BoundPorts() []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	ports := make([]int, 0, len(l.bound))
	for port := range l.bound {
		ports = append(ports, port)
	}

	slices.Sort(ports)

	return ports
}

func (l *Listener) bindLocked(port int) error {
	ln, err := l.listen("tcp", net.JoinHostPort(l.cfg.Address, strconv.Itoa(port)))
	if err != nil {
		return err
	}

	l.bound[port] = ln

	l.wg.Add(1)

	go l.serve(port, l.limiter.Wrap(ln))

	return nil
}

func (l *Listener) serve(port int, ln net.Listener) {
	defer l.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			l.logger.Debug().Err(err).Int("port", port).Msg("Catch-all accept failed")

			time.Sleep(acceptBackoff)

			continue
		}

		if !l.track(conn) {
			_ = conn.Close()

			continue
		}

		go l.handle(port, conn)
	}
}

// track registers conn for shutdown. It fails once StopAll has begun.
func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return false
	}

	l.conns[conn] = struct{}{}
	l.wg.Add(1)

	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()

	_ = conn.Close()
}

func (l *Listener) handle(port int, conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)

	peer := limiter.PeerIP(conn.RemoteAddr())

	buf := make([]byte, l.cfg.MaxReadBytes)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil {
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			l.recorder.LogProbe(peer, port, chunk)
		}

		if err != nil {
			return
		}
	}
}
