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

// Package decoy provides a minimal port-specific decoy: it greets the peer with a
// configured banner and records everything the peer sends.
package decoy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/limiter"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
)

const acceptBackoff = 50 * time.Millisecond

var errBind = errors.New("failed to bind decoy")

// Service is a banner decoy bound to a single port behind its own admission limiter.
type Service struct {
	cfg      models.DecoyConfig
	address  string
	recorder events.Recorder
	limiter  *limiter.Limiter
	logger   logger.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func New(address string, cfg models.DecoyConfig, recorder events.Recorder, log logger.Logger) *Service {
	if cfg.ConnectionsPerHost <= 0 {
		cfg.ConnectionsPerHost = models.DefaultMaxConnectionsPerHost
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = models.Duration(models.DefaultReadTimeout)
	}

	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = models.DefaultMaxReadBytes
	}

	return &Service{
		cfg:      cfg,
		address:  address,
		recorder: recorder,
		limiter:  limiter.New(cfg.Name, cfg.ConnectionsPerHost, recorder, log),
		logger:   log,
		conns:    make(map[net.Conn]struct{}),
	}
}

func (s *Service) Name() string {
	return s.cfg.Name
}

func (s *Service) Address() string {
	return s.address
}

func (s *Service) Port() int {
	return s.cfg.Port
}

// Limiter exposes the per-peer admission limiter of this decoy.
func (s *Service) Limiter() *limiter.Limiter {
	return s.limiter
}

// Start binds the decoy port. Calling Start on a bound decoy is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return nil
	}

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.address, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("%w %s on port %d: %w", errBind, s.cfg.Name, s.cfg.Port, err)
	}

	s.ln = ln

	s.wg.Add(1)

	go s.serve(s.limiter.Wrap(ln))

	return nil
}

// Stop unbinds the port, closes open sessions and waits for their handlers.
func (s *Service) Stop(_ context.Context) error {
	s.mu.Lock()

	if s.ln == nil {
		s.mu.Unlock()
		return nil
	}

	err := s.ln.Close()
	s.ln = nil

	for conn := range s.conns {
		_ = conn.Close()
	}

	s.mu.Unlock()

	s.wg.Wait()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close %s listener: %w", s.cfg.Name, err)
	}

	return nil
}

func (s *Service) serve(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			s.logger.Debug().Err(err).Str("service", s.cfg.Name).Msg("Accept failed")

			time.Sleep(acceptBackoff)

			continue
		}

		s.mu.Lock()
		if s.ln == nil {
			s.mu.Unlock()

			_ = conn.Close()

			continue
		}

		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

func (s *Service) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()

		_ = conn.Close()
	}()

	peer := limiter.PeerIP(conn.RemoteAddr())

	if s.cfg.Banner != "" {
		if _, err := conn.Write([]byte(s.cfg.Banner)); err != nil {
			return
		}
	}

	buf := make([]byte, s.cfg.MaxReadBytes)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(time.Duration(s.cfg.ReadTimeout))); err != nil {
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			s.recorder.LogRequest(s.cfg.Name, peer, s.cfg.Port, chunk)
		}

		if err != nil {
			return
		}
	}
}
