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
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
	"golang.org/x/net/ipv4"

	"github.com/honeygrove/honeygrove/pkg/models"
)

// TCP flag bits of header byte 13.
const (
	FlagFIN uint8 = 0x01
	FlagSYN uint8 = 0x02
	FlagRST uint8 = 0x04
	FlagPSH uint8 = 0x08
	FlagACK uint8 = 0x10
	FlagURG uint8 = 0x20
	FlagECE uint8 = 0x40
	FlagCWR uint8 = 0x80

	FlagsXMAS = FlagFIN | FlagPSH | FlagURG

	tcpHeaderLen   = 20
	tcpFlagsOffset = 13
)

// Segment is the part of a captured IPv4/TCP packet the detector cares about.
type Segment struct {
	Version    int
	TTL        int
	Protocol   int
	SourceIP   net.IP
	DestIP     net.IP
	SourcePort int
	DestPort   int
	Flags      uint8
}

// ParseSegment decodes an IPv4 header, honoring IHL, followed by the fixed 20-byte TCP
// header. The TCP data offset and options are not validated.
func ParseSegment(b []byte) (Segment, error) {
	if len(b) < ipv4.HeaderLen {
		return Segment{}, fmt.Errorf("%w: %d bytes", ErrShortIPv4Header, len(b))
	}

	if v := int(b[0] >> 4); v != ipv4.Version {
		return Segment{}, fmt.Errorf("%w: version %d", ErrNotIPv4, v)
	}

	ihl := int(b[0]&0x0f) << 2
	if ihl < ipv4.HeaderLen || ihl > len(b) {
		return Segment{}, fmt.Errorf("%w: %d", ErrBadIPv4HeaderLength, ihl)
	}

	hdr, err := ipv4.ParseHeader(b)
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %w", ErrBadIPv4HeaderLength, err)
	}

	if hdr.Protocol != int(layers.IPProtocolTCP) {
		return Segment{}, fmt.Errorf("%w: protocol %d", ErrNotTCP, hdr.Protocol)
	}

	payload := b[hdr.Len:]
	if len(payload) < tcpHeaderLen {
		return Segment{}, fmt.Errorf("%w: %d bytes", ErrShortTCPHeader, len(payload))
	}

	return Segment{
		Version:    hdr.Version,
		TTL:        hdr.TTL,
		Protocol:   hdr.Protocol,
		SourceIP:   hdr.Src,
		DestIP:     hdr.Dst,
		SourcePort: int(binary.BigEndian.Uint16(payload[0:2])),
		DestPort:   int(binary.BigEndian.Uint16(payload[2:4])),
		Flags:      payload[tcpFlagsOffset],
	}, nil
}

type action int

const (
	actionIgnore action = iota
	actionStage
	actionClear
	actionReport
)

// classify maps an exact flag byte to what the detector does with it. Only the
// returned kind of staged and reported segments is meaningful.
func classify(flags uint8) (action, models.ScanKind) {
	switch flags {
	case FlagSYN:
		return actionStage, models.ScanSYN
	case FlagFIN:
		return actionStage, models.ScanFIN
	case FlagsXMAS:
		return actionStage, models.ScanXMAS
	case FlagACK:
		return actionClear, ""
	case 0:
		return actionReport, models.ScanNULL
	default:
		return actionIgnore, ""
	}
}
