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

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/honeygrove/honeygrove/pkg/logger"
)

const (
	// CatchAllServiceName is the registry name of the catch-all listener.
	CatchAllServiceName = "LISTEN"
	// ScanServiceName is the registry name of the passive scan detector.
	ScanServiceName = "TCPFlagSniffer"

	DefaultMaxConnectionsPerHost = 100
	DefaultCatchAllFirstPort     = 1
	DefaultCatchAllLastPort      = 4999
	DefaultScanTimeout           = 5 * time.Second
	DefaultSweepInterval         = 500 * time.Millisecond
	DefaultReadTimeout           = 30 * time.Second
	DefaultMaxReadBytes          = 4096
	DefaultHeartbeatInterval     = 60 * time.Second
	DefaultBindAddress           = "0.0.0.0"
	DefaultEventStream           = "honeygrove"
	DefaultControlPrefix         = "honeygrove.control"

	maxPort = 65535
)

var (
	errInvalidDuration     = errors.New("invalid duration")
	errMissingHPID         = errors.New("hpid is required")
	errInvalidPortRange    = errors.New("invalid catch-all port range")
	errInvalidServicePort  = errors.New("invalid service port")
	errDuplicateService    = errors.New("duplicate service name")
	errReservedServiceName = errors.New("service name is reserved")
	errSweepNotBelowWindow = errors.New("scan sweep interval must be smaller than scan timeout")
	errInvalidCeiling      = errors.New("connections per host must be positive")
)

// Duration is a time.Duration that unmarshals from "5s" style strings or nanosecond numbers.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// HoneypotConfig is the root configuration of a honeygrove instance.
type HoneypotConfig struct {
	HPID                   string          `json:"hpid"`
	Description            string          `json:"description,omitempty"`
	Address                string          `json:"address"`
	MaxConnectionsPerHost  int             `json:"max_connections_per_host"`
	EnabledServices        []string        `json:"enabled_services"`
	NoPortSpecificServices []string        `json:"no_port_specific_services"`
	CatchAll               CatchAllConfig  `json:"catch_all"`
	Scan                   ScanConfig      `json:"scan"`
	Services               []DecoyConfig   `json:"services"`
	Heartbeat              HeartbeatConfig `json:"heartbeat"`
	NATS                   *NATSConfig     `json:"nats,omitempty"`
	Events                 *EventsConfig   `json:"events,omitempty"`
	Control                *ControlConfig  `json:"control,omitempty"`
	GeoIP                  *GeoIPConfig    `json:"geoip,omitempty"`
	Logging                *logger.Config  `json:"logging,omitempty"`
	Metrics                *MetricsConfig  `json:"metrics,omitempty"`
}

// CatchAllConfig describes the generic listener that covers unclaimed ports.
type CatchAllConfig struct {
	FirstPort          int      `json:"first_port"`
	LastPort           int      `json:"last_port"`
	ConnectionsPerHost int      `json:"connections_per_host"`
	ReadTimeout        Duration `json:"read_timeout"`
	MaxReadBytes       int      `json:"max_read_bytes"`
}

// Ports expands the configured range.
func (c CatchAllConfig) Ports() []int {
	if c.LastPort < c.FirstPort {
		return nil
	}

	ports := make([]int, 0, c.LastPort-c.FirstPort+1)
	for p := c.FirstPort; p <= c.LastPort; p++ {
		ports = append(ports, p)
	}

	return ports
}

// ScanConfig tunes the passive TCP flag scan detector.
type ScanConfig struct {
	Timeout       Duration `json:"timeout"`
	SweepInterval Duration `json:"sweep_interval"`
	// ReceiveBuffer sets SO_RCVBUF on the raw socket when non-zero.
	ReceiveBuffer int `json:"receive_buffer"`
}

// DecoyConfig describes one port-specific decoy service.
type DecoyConfig struct {
	Name               string   `json:"name"`
	Port               int      `json:"port"`
	Banner             string   `json:"banner"`
	ConnectionsPerHost int      `json:"connections_per_host"`
	ReadTimeout        Duration `json:"read_timeout"`
	MaxReadBytes       int      `json:"max_read_bytes"`
}

type HeartbeatConfig struct {
	Enabled  bool     `json:"enabled"`
	Interval Duration `json:"interval"`
}

// NATSConfig locates the broker that receives alerts and control commands.
type NATSConfig struct {
	URL      string          `json:"url"`
	Domain   string          `json:"domain,omitempty"`
	Security *SecurityConfig `json:"security,omitempty"`
}

type EventsConfig struct {
	Enabled    bool     `json:"enabled"`
	StreamName string   `json:"stream_name"`
	Subjects   []string `json:"subjects"`
	QueueSize  int      `json:"queue_size"`
}

type ControlConfig struct {
	Enabled       bool   `json:"enabled"`
	SubjectPrefix string `json:"subject_prefix"`
}

type GeoIPConfig struct {
	Enabled      bool   `json:"enabled"`
	DatabasePath string `json:"database_path"`
}

type MetricsConfig struct {
	Enabled        bool              `json:"enabled"`
	ExportInterval Duration          `json:"export_interval"`
	OTel           logger.OTelConfig `json:"otel"`
}

// DefaultDecoys mirrors the stock service set of a honeygrove node.
func DefaultDecoys() []DecoyConfig {
	return []DecoyConfig{
		{Name: "FTP", Port: 21, Banner: "220 (vsFTPd 3.0.3)\r\n"},
		{Name: "SSH", Port: 22, Banner: "SSH-2.0-uhh\r\n"},
		{Name: "Telnet", Port: 23, Banner: "login: "},
		{Name: "SMTP", Port: 25, Banner: "220 mail.example.com ESMTP Postfix\r\n"},
		{Name: "HTTP", Port: 80},
		{Name: "S7comm", Port: 102},
		{Name: "POP3", Port: 110, Banner: "+OK POP3 server ready\r\n"},
		{Name: "IMAP", Port: 143, Banner: "* OK IMAP4rev1 Service Ready\r\n"},
		{Name: "Modbus", Port: 502},
	}
}

// DefaultHoneypotConfig returns a fully defaulted configuration.
func DefaultHoneypotConfig() *HoneypotConfig {
	cfg := &HoneypotConfig{HPID: "HP1"}
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills every zero value with its documented default.
func (c *HoneypotConfig) ApplyDefaults() {
	if c.Address == "" {
		c.Address = DefaultBindAddress
	}

	if c.MaxConnectionsPerHost == 0 {
		c.MaxConnectionsPerHost = DefaultMaxConnectionsPerHost
	}

	if c.CatchAll.FirstPort == 0 && c.CatchAll.LastPort == 0 {
		c.CatchAll.FirstPort = DefaultCatchAllFirstPort
		c.CatchAll.LastPort = DefaultCatchAllLastPort
	}

	if c.CatchAll.ConnectionsPerHost == 0 {
		c.CatchAll.ConnectionsPerHost = c.MaxConnectionsPerHost
	}

	if c.CatchAll.ReadTimeout == 0 {
		c.CatchAll.ReadTimeout = Duration(DefaultReadTimeout)
	}

	if c.CatchAll.MaxReadBytes == 0 {
		c.CatchAll.MaxReadBytes = DefaultMaxReadBytes
	}

	if c.Scan.Timeout == 0 {
		c.Scan.Timeout = Duration(DefaultScanTimeout)
	}

	if c.Scan.SweepInterval == 0 {
		c.Scan.SweepInterval = Duration(DefaultSweepInterval)
	}

	if c.Services == nil {
		c.Services = DefaultDecoys()
	}

	for i := range c.Services {
		svc := &c.Services[i]

		if svc.ConnectionsPerHost == 0 {
			svc.ConnectionsPerHost = c.MaxConnectionsPerHost
		}

		if svc.ReadTimeout == 0 {
			svc.ReadTimeout = Duration(DefaultReadTimeout)
		}

		if svc.MaxReadBytes == 0 {
			svc.MaxReadBytes = DefaultMaxReadBytes
		}
	}

	if c.NoPortSpecificServices == nil {
		c.NoPortSpecificServices = []string{CatchAllServiceName, ScanServiceName}
	}

	if c.EnabledServices == nil {
		c.EnabledServices = append(c.EnabledServices, CatchAllServiceName)
		for _, svc := range c.Services {
			c.EnabledServices = append(c.EnabledServices, svc.Name)
		}

		c.EnabledServices = append(c.EnabledServices, ScanServiceName)
	}

	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = Duration(DefaultHeartbeatInterval)
	}

	if c.Events != nil {
		if c.Events.StreamName == "" {
			c.Events.StreamName = DefaultEventStream
		}

		if len(c.Events.Subjects) == 0 {
			c.Events.Subjects = []string{EventSubjectPrefix + ".>"}
		}
	}

	if c.Control != nil && c.Control.SubjectPrefix == "" {
		c.Control.SubjectPrefix = DefaultControlPrefix
	}
}

// Validate implements config.Validator.
func (c *HoneypotConfig) Validate() error {
	if c.HPID == "" {
		return errMissingHPID
	}

	if c.CatchAll.FirstPort < 1 || c.CatchAll.LastPort > maxPort || c.CatchAll.FirstPort > c.CatchAll.LastPort {
		return fmt.Errorf("%w: %d-%d", errInvalidPortRange, c.CatchAll.FirstPort, c.CatchAll.LastPort)
	}

	if c.Scan.SweepInterval >= c.Scan.Timeout {
		return errSweepNotBelowWindow
	}

	if c.MaxConnectionsPerHost < 1 || c.CatchAll.ConnectionsPerHost < 1 {
		return errInvalidCeiling
	}

	seen := map[string]bool{}

	for _, svc := range c.Services {
		if svc.Name == CatchAllServiceName || svc.Name == ScanServiceName {
			return fmt.Errorf("%w: %s", errReservedServiceName, svc.Name)
		}

		if seen[svc.Name] {
			return fmt.Errorf("%w: %s", errDuplicateService, svc.Name)
		}

		seen[svc.Name] = true

		if svc.Port < 1 || svc.Port > maxPort {
			return fmt.Errorf("%w: %s port %d", errInvalidServicePort, svc.Name, svc.Port)
		}

		if svc.ConnectionsPerHost < 1 {
			return fmt.Errorf("%w: %s", errInvalidCeiling, svc.Name)
		}
	}

	return nil
}
