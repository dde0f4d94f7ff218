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

// Package limiter bounds concurrent connections per source IP for a single service.
package limiter

import (
	"context"
	"net"
	"sync"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/metrics"
)

// Limiter enforces a per-peer concurrent connection ceiling. One Limiter exists per
// service; counters of different services are independent.
type Limiter struct {
	service  string
	ceiling  int
	recorder events.Recorder
	logger   logger.Logger

	mu    sync.Mutex
	peers map[string]int
}

func New(service string, ceiling int, recorder events.Recorder, log logger.Logger) *Limiter {
	return &Limiter{
		service:  service,
		ceiling:  ceiling,
		recorder: recorder,
		logger:   log,
		peers:    make(map[string]int),
	}
}

// Service is the name reported in limit-reached events.
func (l *Limiter) Service() string {
	return l.service
}

// Ceiling is the maximum number of concurrent connections per peer.
func (l *Limiter) Ceiling() int {
	return l.ceiling
}

// Admit reserves a slot for peerIP. It returns false, and records a limit-reached
// event, when the peer already holds ceiling connections.
func (l *Limiter) Admit(peerIP string) bool {
	l.mu.Lock()

	if l.peers[peerIP] >= l.ceiling {
		l.mu.Unlock()

		l.recorder.LogLimitReached(l.service, peerIP)
		metrics.RecordAdmission(context.Background(), l.service, false)

		return false
	}

	l.peers[peerIP]++
	l.mu.Unlock()

	metrics.RecordAdmission(context.Background(), l.service, true)

	return true
}

// Release returns a slot taken by Admit. The peer entry is deleted when its count reaches zero.
func (l *Limiter) Release(peerIP string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count, ok := l.peers[peerIP]
	if !ok {
		l.logger.Debug().Str("service", l.service).Str("peer", peerIP).Msg("Release for untracked peer")
		return
	}

	if count <= 1 {
		delete(l.peers, peerIP)
		return
	}

	l.peers[peerIP] = count - 1
}

// Count returns the live connection count of peerIP.
func (l *Limiter) Count(peerIP string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.peers[peerIP]
}

// Tracked returns how many peers currently hold at least one connection.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.peers)
}

// Wrap returns a listener that admits connections through l. Rejected connections
// are closed before Accept sees them; admitted ones release their slot on first Close.
func (l *Limiter) Wrap(inner net.Listener) net.Listener {
	return &listener{Listener: inner, limiter: l}
}

type listener struct {
	net.Listener
	limiter *Limiter
}

func (ln *listener) Accept() (net.Conn, error) {
	for {
		conn, err := ln.Listener.Accept()
		if err != nil {
			return nil, err
		}

		peer := PeerIP(conn.RemoteAddr())

		if !ln.limiter.Admit(peer) {
			_ = conn.Close()
			continue
		}

		return &trackedConn{Conn: conn, limiter: ln.limiter, peer: peer}, nil
	}
}

type trackedConn struct {
	net.Conn
	limiter *Limiter
	peer    string
	once    sync.Once
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()

	c.once.Do(func() {
		c.limiter.Release(c.peer)
	})

	return err
}

// PeerIP extracts the host part of a remote address.
func PeerIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.String()
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return host
}
