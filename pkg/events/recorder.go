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

// Package events records honeypot alerts: probes, decoy requests, admission
// rejections, scans and heartbeats. Every alert is written to the structured log,
// counted in metrics and, when a publisher is configured, forwarded as a CloudEvent.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/metrics"
	"github.com/honeygrove/honeygrove/pkg/models"
)

const (
	defaultQueueSize = 1024
	publishTimeout   = 5 * time.Second
)

//go:generate mockgen -destination=mock_events.go -package=events github.com/honeygrove/honeygrove/pkg/events Publisher

// Recorder is the alert sink every control-plane component reports to.
type Recorder interface {
	LogInfo(msg string)
	LogProbe(sourceIP string, destPort int, raw []byte)
	LogRequest(service, sourceIP string, destPort int, payload []byte)
	LogLimitReached(service, sourceIP string)
	LogScan(sourceIP string, destPort int, kind models.ScanKind, observedAt time.Time)
	LogHeartbeat(hb models.HeartbeatEvent)
}

// Publisher forwards an event payload to the broker.
type Publisher interface {
	Publish(ctx context.Context, subject, eventType string, ts time.Time, data interface{}) error
}

// Locator resolves a source address to a country code.
type Locator interface {
	Country(ip string) string
}

type outbound struct {
	subject   string
	eventType string
	ts        time.Time
	data      interface{}
}

// Logbook is the production Recorder.
type Logbook struct {
	hpid      string
	log       logger.Logger
	publisher Publisher
	geo       Locator
	now       func() time.Time

	queueSize int
	mu        sync.RWMutex
	queue     chan outbound
	wg        sync.WaitGroup
}

var _ Recorder = (*Logbook)(nil)

// Option configures a Logbook.
type Option func(*Logbook)

// WithPublisher forwards every alert to p through a bounded queue. Alerts are
// dropped with a warning when the queue is full.
func WithPublisher(p Publisher, queueSize int) Option {
	return func(b *Logbook) {
		b.publisher = p

		if queueSize > 0 {
			b.queueSize = queueSize
		}
	}
}

// WithLocator enables GeoIP enrichment of source addresses.
func WithLocator(l Locator) Option {
	return func(b *Logbook) {
		b.geo = l
	}
}

// WithClock overrides the wall clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Logbook) {
		b.now = now
	}
}

func NewLogbook(hpid string, log logger.Logger, opts ...Option) *Logbook {
	b := &Logbook{
		hpid:      hpid,
		log:       log,
		now:       time.Now,
		queueSize: defaultQueueSize,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Start launches the publish worker. It is a no-op without a publisher.
func (b *Logbook) Start(ctx context.Context) error {
	if b.publisher == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		return nil
	}

	queue := make(chan outbound, b.queueSize)
	b.queue = queue

	b.wg.Add(1)

	go b.publishLoop(context.WithoutCancel(ctx), queue)

	return nil
}

// Stop drains queued alerts and stops the publish worker.
func (b *Logbook) Stop(ctx context.Context) error {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()

	if queue == nil {
		return nil
	}

	close(queue)

	done := make(chan struct{})

	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Logbook) publishLoop(ctx context.Context, queue <-chan outbound) {
	defer b.wg.Done()

	for item := range queue {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)

		if err := b.publisher.Publish(pubCtx, item.subject, item.eventType, item.ts, item.data); err != nil {
			b.log.Warn().Err(err).Str("subject", item.subject).Msg("Failed to forward alert")
		}

		cancel()
	}
}

func (b *Logbook) enqueue(kind, eventType string, ts time.Time, data interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.queue == nil {
		return
	}

	select {
	case b.queue <- outbound{
		subject:   models.EventSubjectPrefix + "." + kind,
		eventType: eventType,
		ts:        ts,
		data:      data,
	}:
	default:
		b.log.Warn().Str("kind", kind).Msg("Alert queue full, dropping event")
	}
}

func (b *Logbook) country(ip string) string {
	if b.geo == nil {
		return ""
	}

	return b.geo.Country(ip)
}

func (b *Logbook) LogInfo(msg string) {
	ts := b.now().UTC()

	b.log.Info().Str("event", "info").Msg(msg)

	b.enqueue("info", models.EventTypeInfo, ts, models.InfoEvent{
		HoneypotID: b.hpid,
		Message:    msg,
		Timestamp:  ts,
	})
}

func (b *Logbook) LogProbe(sourceIP string, destPort int, raw []byte) {
	ts := b.now().UTC()
	event := models.ProbeEvent{
		HoneypotID: b.hpid,
		Service:    models.CatchAllServiceName,
		SourceIP:   sourceIP,
		DestPort:   destPort,
		Payload:    printable(raw),
		Size:       len(raw),
		Country:    b.country(sourceIP),
		Timestamp:  ts,
	}

	b.log.Info().
		Str("event", "probe").
		Str("source_ip", sourceIP).
		Int("dest_port", destPort).
		Int("size", len(raw)).
		Str("payload", event.Payload).
		Str("country", event.Country).
		Msg("Probe on unclaimed port")

	metrics.RecordProbe(context.Background(), destPort)
	b.enqueue("probe", models.EventTypeProbe, ts, event)
}

func (b *Logbook) LogRequest(service, sourceIP string, destPort int, payload []byte) {
	ts := b.now().UTC()
	event := models.RequestEvent{
		HoneypotID: b.hpid,
		Service:    service,
		SourceIP:   sourceIP,
		DestPort:   destPort,
		Request:    printable(payload),
		Country:    b.country(sourceIP),
		Timestamp:  ts,
	}

	b.log.Info().
		Str("event", "request").
		Str("service", service).
		Str("source_ip", sourceIP).
		Int("dest_port", destPort).
		Str("request", event.Request).
		Msg("Request received")

	metrics.RecordRequest(context.Background(), service)
	b.enqueue("request", models.EventTypeRequest, ts, event)
}

func (b *Logbook) LogLimitReached(service, sourceIP string) {
	ts := b.now().UTC()

	b.log.Warn().
		Str("event", "limit_reached").
		Str("service", service).
		Str("source_ip", sourceIP).
		Msg("Connection limit reached")

	b.enqueue("limit", models.EventTypeLimit, ts, models.LimitEvent{
		HoneypotID: b.hpid,
		Service:    service,
		SourceIP:   sourceIP,
		Country:    b.country(sourceIP),
		Timestamp:  ts,
	})
}

func (b *Logbook) LogScan(sourceIP string, destPort int, kind models.ScanKind, observedAt time.Time) {
	ts := b.now().UTC()
	event := models.ScanEvent{
		HoneypotID: b.hpid,
		SourceIP:   sourceIP,
		DestPort:   destPort,
		Kind:       kind,
		ObservedAt: observedAt.UTC(),
		Country:    b.country(sourceIP),
		Timestamp:  ts,
	}

	b.log.Warn().
		Str("event", "scan").
		Str("kind", string(kind)).
		Str("source_ip", sourceIP).
		Int("dest_port", destPort).
		Time("observed_at", event.ObservedAt).
		Str("country", event.Country).
		Msg("Port scan detected")

	metrics.RecordScan(context.Background(), kind)
	b.enqueue("scan", models.EventTypeScan, ts, event)
}

func (b *Logbook) LogHeartbeat(hb models.HeartbeatEvent) {
	hb.HoneypotID = b.hpid
	if hb.Timestamp.IsZero() {
		hb.Timestamp = b.now().UTC()
	}

	b.log.Debug().
		Str("event", "heartbeat").
		Uint64("uptime_seconds", hb.UptimeSeconds).
		Strs("running_services", hb.RunningServices).
		Msg("Heartbeat")

	b.enqueue("heartbeat", models.EventTypeHeartbeat, hb.Timestamp, hb)
}

// printable renders captured bytes as valid UTF-8 for logs and JSON.
func printable(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}
