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

// Package scan passively classifies TCP segments seen on a raw socket and reports
// SYN, FIN, XMAS and NULL scans.
package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/metrics"
	"github.com/honeygrove/honeygrove/pkg/models"
)

//go:generate mockgen -destination=mock_scan.go -package=scan github.com/honeygrove/honeygrove/pkg/scan PacketSource

const (
	maxPacketSize  = 65535
	readRetryDelay = 100 * time.Millisecond
)

// PacketSource yields whole IPv4 packets, header included. Close must unblock a
// pending ReadPacket.
type PacketSource interface {
	ReadPacket(buf []byte) (int, error)
	Close() error
}

// SourceOpener creates a fresh PacketSource for each Start.
type SourceOpener func() (PacketSource, error)

type pendingKey struct {
	ip   string
	port int
}

type pendingSegment struct {
	sourceIP   string
	destPort   int
	observedAt time.Time
	wallClock  time.Time
}

// stagedKinds is the sweep order of the pending tables.
var stagedKinds = []models.ScanKind{models.ScanSYN, models.ScanFIN, models.ScanXMAS}

// Config tunes detection latency.
type Config struct {
	Timeout       time.Duration
	SweepInterval time.Duration
	ReceiveBuffer int
}

// ConfigFrom converts the scan section of the node configuration.
func ConfigFrom(cfg models.ScanConfig) Config {
	return Config{
		Timeout:       time.Duration(cfg.Timeout),
		SweepInterval: time.Duration(cfg.SweepInterval),
		ReceiveBuffer: cfg.ReceiveBuffer,
	}
}

type Option func(*Detector)

// WithSourceOpener replaces the raw socket with another packet source.
func WithSourceOpener(open SourceOpener) Option {
	return func(d *Detector) {
		d.open = open
	}
}

// WithClock replaces time.Now for aging pending segments.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// Detector is registered with the supervisor as TCPFlagSniffer. It has no port of its own.
type Detector struct {
	cfg      Config
	recorder events.Recorder
	logger   logger.Logger
	open     SourceOpener
	now      func() time.Time

	// mu guards the three pending tables, shared by the capture and sweep loops.
	mu      sync.Mutex
	pending map[models.ScanKind]map[pendingKey]pendingSegment

	// runMu serializes Start and Stop.
	runMu   sync.Mutex
	running bool
	source  PacketSource
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDetector(cfg Config, recorder events.Recorder, log logger.Logger, opts ...Option) *Detector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = models.DefaultScanTimeout
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = models.DefaultSweepInterval
	}

	d := &Detector{
		cfg:      cfg,
		recorder: recorder,
		logger:   log,
		now:      time.Now,
		pending:  newPendingTables(),
	}

	d.open = func() (PacketSource, error) {
		return OpenRawSource(d.cfg.ReceiveBuffer)
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func newPendingTables() map[models.ScanKind]map[pendingKey]pendingSegment {
	tables := make(map[models.ScanKind]map[pendingKey]pendingSegment, len(stagedKinds))
	for _, kind := range stagedKinds {
		tables[kind] = make(map[pendingKey]pendingSegment)
	}

	return tables
}

func (*Detector) Name() string {
	return models.ScanServiceName
}

func (*Detector) Address() string {
	return ""
}

func (*Detector) Port() int {
	return 0
}

// Running reports whether the capture and sweep loops are active.
func (d *Detector) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	return d.running
}

// Start opens a fresh packet source and spawns new capture and sweep loops. When the
// source cannot be opened the detector stays disabled and the error wraps ErrDetectorDisabled.
func (d *Detector) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.running {
		return nil
	}

	src, err := d.open()
	if err != nil {
		d.logger.Error().Err(err).Msg("Raw socket could not be opened, scan detection disabled")

		return fmt.Errorf("%w: %w", ErrDetectorDisabled, err)
	}

	d.mu.Lock()
	d.pending = newPendingTables()
	d.mu.Unlock()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	d.source = src
	d.cancel = cancel
	d.running = true

	d.wg.Add(2)

	go d.captureLoop(loopCtx, src)
	go d.sweepLoop(loopCtx)

	d.logger.Info().
		Dur("timeout", d.cfg.Timeout).
		Dur("sweep_interval", d.cfg.SweepInterval).
		Msg("Scan detector started")

	return nil
}

// Stop cancels both loops, closes the source to unblock the capture read and waits
// until both loops have exited.
func (d *Detector) Stop(_ context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if !d.running {
		return nil
	}

	d.cancel()

	err := d.source.Close()

	d.wg.Wait()

	d.source = nil
	d.cancel = nil
	d.running = false

	d.logger.Info().Msg("Scan detector stopped")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close packet source: %w", err)
	}

	return nil
}

func (d *Detector) captureLoop(ctx context.Context, src PacketSource) {
	defer d.wg.Done()

	buf := make([]byte, maxPacketSize)

	for {
		n, err := src.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			d.logger.Warn().Err(err).Msg("Raw socket read failed")

			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}

			continue
		}

		seg, err := ParseSegment(buf[:n])
		if err != nil {
			metrics.RecordMalformedPacket(ctx)

			d.logger.Debug().Err(err).Int("size", n).Msg("Skipping malformed packet")

			continue
		}

		d.observe(seg)
	}
}

func (d *Detector) sweepLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

// observe applies one classified segment to the pending tables.
func (d *Detector) observe(seg Segment) {
	act, kind := classify(seg.Flags)
	if act == actionIgnore {
		return
	}

	key := pendingKey{ip: seg.SourceIP.String(), port: seg.DestPort}
	now := d.now()

	switch act {
	case actionStage:
		d.mu.Lock()
		d.pending[kind][key] = pendingSegment{
			sourceIP:   key.ip,
			destPort:   key.port,
			observedAt: now,
			wallClock:  now.Round(0),
		}
		d.mu.Unlock()
	case actionClear:
		d.mu.Lock()
		for _, k := range stagedKinds {
			delete(d.pending[k], key)
		}
		d.mu.Unlock()
	case actionReport:
		d.report(key.ip, key.port, kind, now.Round(0))
	}
}

// sweep reports and evicts every pending segment older than the timeout.
func (d *Detector) sweep() {
	type expired struct {
		seg  pendingSegment
		kind models.ScanKind
	}

	now := d.now()

	var due []expired

	d.mu.Lock()

	for _, kind := range stagedKinds {
		table := d.pending[kind]

		for key, seg := range table {
			if now.Sub(seg.observedAt) > d.cfg.Timeout {
				due = append(due, expired{seg: seg, kind: kind})

				delete(table, key)
			}
		}
	}

	d.mu.Unlock()

	for _, e := range due {
		d.report(e.seg.sourceIP, e.seg.destPort, e.kind, e.seg.wallClock)
	}
}

func (d *Detector) report(sourceIP string, destPort int, kind models.ScanKind, observedAt time.Time) {
	d.recorder.LogScan(sourceIP, destPort, kind, observedAt)
}

// PendingCount returns the number of staged segments of kind.
func (d *Detector) PendingCount(kind models.ScanKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending[kind])
}
