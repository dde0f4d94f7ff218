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

package models

import "time"

// ScanKind names the TCP reconnaissance technique a scan event was attributed to.
type ScanKind string

const (
	ScanSYN  ScanKind = "syn"
	ScanFIN  ScanKind = "fin"
	ScanXMAS ScanKind = "xmas"
	ScanNULL ScanKind = "null"
)

const (
	EventSubjectPrefix = "events.honeygrove"

	EventTypeInfo      = "com.honeygrove.info"
	EventTypeProbe     = "com.honeygrove.probe"
	EventTypeRequest   = "com.honeygrove.request"
	EventTypeLimit     = "com.honeygrove.limit_reached"
	EventTypeScan      = "com.honeygrove.scan"
	EventTypeHeartbeat = "com.honeygrove.heartbeat"
)

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// InfoEvent is an administrative message.
type InfoEvent struct {
	HoneypotID string    `json:"honeypot_id"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProbeEvent records bytes received on a port no decoy currently owns.
type ProbeEvent struct {
	HoneypotID string    `json:"honeypot_id"`
	Service    string    `json:"service"`
	SourceIP   string    `json:"source_ip"`
	DestPort   int       `json:"dest_port"`
	Payload    string    `json:"payload"`
	Size       int       `json:"size"`
	Country    string    `json:"country,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RequestEvent records bytes a peer sent to a decoy service.
type RequestEvent struct {
	HoneypotID string    `json:"honeypot_id"`
	Service    string    `json:"service"`
	SourceIP   string    `json:"source_ip"`
	DestPort   int       `json:"dest_port"`
	Request    string    `json:"request"`
	Country    string    `json:"country,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// LimitEvent records a connection refused by admission control.
type LimitEvent struct {
	HoneypotID string    `json:"honeypot_id"`
	Service    string    `json:"service"`
	SourceIP   string    `json:"source_ip"`
	Country    string    `json:"country,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScanEvent records a segment pattern attributed to a port scan.
type ScanEvent struct {
	HoneypotID string    `json:"honeypot_id"`
	SourceIP   string    `json:"source_ip"`
	DestPort   int       `json:"dest_port"`
	Kind       ScanKind  `json:"kind"`
	ObservedAt time.Time `json:"observed_at"`
	Country    string    `json:"country,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// HeartbeatEvent is the periodic liveness record of a node.
type HeartbeatEvent struct {
	HoneypotID        string    `json:"honeypot_id"`
	UptimeSeconds     uint64    `json:"uptime_seconds"`
	CPUPercent        float64   `json:"cpu_percent"`
	MemoryUsedPercent float64   `json:"memory_used_percent"`
	RunningServices   []string  `json:"running_services"`
	Timestamp         time.Time `json:"timestamp"`
}
