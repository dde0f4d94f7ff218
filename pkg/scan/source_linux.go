//go:build linux

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

package scan

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// rawSource reads whole IPv4 packets from an ip4:tcp raw socket. Reads go through the
// runtime poller so Close unblocks them.
type rawSource struct {
	conn *net.IPConn
	raw  syscall.RawConn
}

// OpenRawSource opens a raw TCP socket on all interfaces. It requires CAP_NET_RAW.
// A positive receiveBuffer sets SO_RCVBUF.
func OpenRawSource(receiveBuffer int) (PacketSource, error) {
	pc, err := net.ListenPacket("ip4:tcp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRawSocket, err)
	}

	conn, ok := pc.(*net.IPConn)
	if !ok {
		_ = pc.Close()

		return nil, fmt.Errorf("%w: unexpected connection type %T", ErrRawSocket, pc)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: %w", ErrRawSocket, err)
	}

	if receiveBuffer > 0 {
		var sockErr error

		if err := raw.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, receiveBuffer)
		}); err != nil {
			sockErr = err
		}

		if sockErr != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("%w: set receive buffer: %w", ErrRawSocket, sockErr)
		}
	}

	return &rawSource{conn: conn, raw: raw}, nil
}

func (s *rawSource) ReadPacket(buf []byte) (int, error) {
	var (
		n       int
		readErr error
	)

	err := s.raw.Read(func(fd uintptr) bool {
		n, _, readErr = unix.Recvfrom(int(fd), buf, 0)

		return !errors.Is(readErr, unix.EAGAIN) && !errors.Is(readErr, unix.EWOULDBLOCK)
	})
	if err != nil {
		return 0, err
	}

	if readErr != nil {
		return 0, readErr
	}

	return n, nil
}

func (s *rawSource) Close() error {
	return s.conn.Close()
}
