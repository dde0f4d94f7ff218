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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := DefaultHoneypotConfig()

	assert.Equal(t, DefaultMaxConnectionsPerHost, cfg.MaxConnectionsPerHost)
	assert.Equal(t, 1, cfg.CatchAll.FirstPort)
	assert.Equal(t, 4999, cfg.CatchAll.LastPort)
	assert.Len(t, cfg.CatchAll.Ports(), 4999)
	assert.Equal(t, Duration(5*time.Second), cfg.Scan.Timeout)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Scan.SweepInterval)
	assert.Equal(t, []string{CatchAllServiceName, ScanServiceName}, cfg.NoPortSpecificServices)
	assert.Equal(t, CatchAllServiceName, cfg.EnabledServices[0])
	assert.Equal(t, ScanServiceName, cfg.EnabledServices[len(cfg.EnabledServices)-1])

	for _, svc := range cfg.Services {
		assert.Equal(t, DefaultMaxConnectionsPerHost, svc.ConnectionsPerHost, svc.Name)
	}

	require.NoError(t, cfg.Validate())
}

func TestPerServiceCeilingOverride(t *testing.T) {
	raw := `{
		"hpid": "HP7",
		"max_connections_per_host": 20,
		"services": [
			{"name": "SSH", "port": 22, "connections_per_host": 3},
			{"name": "FTP", "port": 21}
		],
		"scan": {"timeout": "2s", "sweep_interval": "250ms"}
	}`

	var cfg HoneypotConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Services[0].ConnectionsPerHost)
	assert.Equal(t, 20, cfg.Services[1].ConnectionsPerHost)
	assert.Equal(t, 20, cfg.CatchAll.ConnectionsPerHost)
	assert.Equal(t, Duration(2*time.Second), cfg.Scan.Timeout)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HoneypotConfig)
		want   error
	}{
		{"missing hpid", func(c *HoneypotConfig) { c.HPID = "" }, errMissingHPID},
		{"inverted range", func(c *HoneypotConfig) { c.CatchAll.FirstPort, c.CatchAll.LastPort = 10, 5 }, errInvalidPortRange},
		{"sweep too slow", func(c *HoneypotConfig) { c.Scan.SweepInterval = c.Scan.Timeout }, errSweepNotBelowWindow},
		{"duplicate", func(c *HoneypotConfig) { c.Services = append(c.Services, c.Services[0]) }, errDuplicateService},
		{"reserved", func(c *HoneypotConfig) { c.Services[0].Name = CatchAllServiceName }, errReservedServiceName},
		{"bad port", func(c *HoneypotConfig) { c.Services[0].Port = 70000 }, errInvalidServicePort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultHoneypotConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
