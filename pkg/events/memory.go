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

package events

import (
	"sync"
	"time"

	"github.com/honeygrove/honeygrove/pkg/models"
)

// Memory is an in-process Recorder that keeps every alert. Tests use it to assert
// on what the control plane reported.
type Memory struct {
	mu       sync.Mutex
	infos    []string
	probes   []models.ProbeEvent
	requests []models.RequestEvent
	limits   []models.LimitEvent
	scans    []models.ScanEvent
	beats    []models.HeartbeatEvent
}

var _ Recorder = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) LogInfo(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.infos = append(m.infos, msg)
}

func (m *Memory) LogProbe(sourceIP string, destPort int, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probes = append(m.probes, models.ProbeEvent{
		Service:  models.CatchAllServiceName,
		SourceIP: sourceIP,
		DestPort: destPort,
		Payload:  string(raw),
		Size:     len(raw),
	})
}

func (m *Memory) LogRequest(service, sourceIP string, destPort int, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, models.RequestEvent{
		Service:  service,
		SourceIP: sourceIP,
		DestPort: destPort,
		Request:  string(payload),
	})
}

func (m *Memory) LogLimitReached(service, sourceIP string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits = append(m.limits, models.LimitEvent{Service: service, SourceIP: sourceIP})
}

func (m *Memory) LogScan(sourceIP string, destPort int, kind models.ScanKind, observedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scans = append(m.scans, models.ScanEvent{
		SourceIP:   sourceIP,
		DestPort:   destPort,
		Kind:       kind,
		ObservedAt: observedAt,
	})
}

func (m *Memory) LogHeartbeat(hb models.HeartbeatEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.beats = append(m.beats, hb)
}

func (m *Memory) Infos() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.infos...)
}

func (m *Memory) Probes() []models.ProbeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.ProbeEvent(nil), m.probes...)
}

func (m *Memory) Requests() []models.RequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.RequestEvent(nil), m.requests...)
}

func (m *Memory) Limits() []models.LimitEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.LimitEvent(nil), m.limits...)
}

func (m *Memory) Scans() []models.ScanEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.ScanEvent(nil), m.scans...)
}

func (m *Memory) Heartbeats() []models.HeartbeatEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.HeartbeatEvent(nil), m.beats...)
}
