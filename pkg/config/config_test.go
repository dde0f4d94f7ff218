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

package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "honeygrove.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadAndValidateFromFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfig(t, `{
		"hpid": "HP2",
		"catch_all": {"first_port": 1000, "last_port": 1010},
		"scan": {"timeout": "8s", "sweep_interval": "250ms"},
		"services": [{"name": "SSH", "port": 1005, "connections_per_host": 5}],
		"nats": {
			"url": "nats://127.0.0.1:4222",
			"security": {"mode": "mtls", "cert_dir": "/etc/honeygrove/certs",
				"tls": {"cert_file": "node.pem", "key_file": "node-key.pem", "ca_file": "/abs/root.pem"}}
		}
	}`)

	var cfg models.HoneypotConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "HP2", cfg.HPID)
	assert.Equal(t, 8*time.Second, time.Duration(cfg.Scan.Timeout))
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.Scan.SweepInterval))
	assert.Equal(t, 5, cfg.Services[0].ConnectionsPerHost)
	assert.Equal(t, models.DefaultMaxConnectionsPerHost, cfg.CatchAll.ConnectionsPerHost, "defaults applied")
	assert.Equal(t, []string{models.CatchAllServiceName, "SSH", models.ScanServiceName}, cfg.EnabledServices)

	tls := cfg.NATS.Security.TLS
	assert.Equal(t, "/etc/honeygrove/certs/node.pem", tls.CertFile)
	assert.Equal(t, "/etc/honeygrove/certs/node-key.pem", tls.KeyFile)
	assert.Equal(t, "/abs/root.pem", tls.CAFile)
}

func TestLoadAndValidateRejectsInvalidConfig(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"hpid": "HP3", "scan": {"timeout": "1s", "sweep_interval": "2s"}}`)

	var cfg models.HoneypotConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep interval")
}

func TestLoadFromMissingFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	var cfg models.HoneypotConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "nope.json"), &cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("HONEYGROVE_HPID", "HP9")
	t.Setenv("HONEYGROVE_MAX_CONNECTIONS_PER_HOST", "12")
	t.Setenv("HONEYGROVE_ENABLED_SERVICES", "LISTEN, SSH")
	t.Setenv("HONEYGROVE_CATCH_ALL_FIRST_PORT", "2000")
	t.Setenv("HONEYGROVE_CATCH_ALL_LAST_PORT", "2099")
	t.Setenv("HONEYGROVE_SCAN_TIMEOUT", "9s")
	t.Setenv("HONEYGROVE_SERVICES", `[{"name":"SSH","port":2022}]`)

	var cfg models.HoneypotConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "HP9", cfg.HPID)
	assert.Equal(t, 12, cfg.MaxConnectionsPerHost)
	assert.Equal(t, []string{"LISTEN", "SSH"}, cfg.EnabledServices)
	assert.Equal(t, 2000, cfg.CatchAll.FirstPort)
	assert.Equal(t, 2099, cfg.CatchAll.LastPort)
	assert.Equal(t, 9*time.Second, time.Duration(cfg.Scan.Timeout))
	require.Len(t, cfg.Services, 1)
	assert.Equal(t, 2022, cfg.Services[0].Port)
	assert.Equal(t, 12, cfg.Services[0].ConnectionsPerHost)
}

func TestLoadFromEnvironmentJSONBlob(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "HG_")
	t.Setenv("HG_CONFIG_JSON", `{"hpid":"HP10"}`)

	var cfg models.HoneypotConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))
	assert.Equal(t, "HP10", cfg.HPID)
}

func TestInvalidConfigSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg models.HoneypotConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"hpid": "HP5", "servces": [{"name": "SSH", "port": 22}]}`)

	var cfg models.HoneypotConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errUnknownConfigKey)
	assert.Contains(t, err.Error(), `"servces"`)
}

func TestLoadRejectsUnknownNestedKey(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"hpid": "HP5", "scan": {"timout": "9s"}}`)

	var cfg models.HoneypotConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errUnknownConfigKey)
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"hpid": "HP5"} {"hpid": "HP6"}`)

	var cfg models.HoneypotConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errTrailingConfig)
}

func TestEnvironmentNestedSectionsAndBadValues(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("HONEYGROVE_HPID", "HP11")
	t.Setenv("HONEYGROVE_MAX_CONNECTIONS_PER_HOST", "lots")
	t.Setenv("HONEYGROVE_HEARTBEAT_ENABLED", "maybe")
	t.Setenv("HONEYGROVE_CONTROL_ENABLED", "true")
	t.Setenv("HONEYGROVE_CONTROL_SUBJECT_PREFIX", "hg.ctl")
	t.Setenv("HONEYGROVE_LOGGING_OTEL_HEADERS", `{"x-tenant":"grove"}`)
	t.Setenv("HONEYGROVE_LOGGING_OTEL_BATCH_TIMEOUT", "3s")

	var cfg models.HoneypotConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "HP11", cfg.HPID)
	assert.Equal(t, models.DefaultMaxConnectionsPerHost, cfg.MaxConnectionsPerHost, "unparsable int keeps default")
	assert.False(t, cfg.Heartbeat.Enabled, "unparsable bool ignored")
	require.NotNil(t, cfg.Control)
	assert.True(t, cfg.Control.Enabled)
	assert.Equal(t, "hg.ctl", cfg.Control.SubjectPrefix)
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, map[string]string{"x-tenant": "grove"}, cfg.Logging.OTel.Headers)
	assert.Equal(t, 3*time.Second, time.Duration(cfg.Logging.OTel.BatchTimeout))
}

func TestAssignEnvRejectsUnusedKinds(t *testing.T) {
	var target struct {
		Ratio float64
	}

	err := assignEnv(reflect.ValueOf(&target).Elem().Field(0), "0.5")
	require.ErrorIs(t, err, errUnsupportedEnvKind)
}
