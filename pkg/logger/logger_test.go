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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string duration", input: `"5s"`, expected: Duration(5 * time.Second)},
		{name: "numeric nanoseconds", input: `500000000`, expected: Duration(500 * time.Millisecond)},
		{name: "invalid string", input: `"soon"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(&Config{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, level)

	level, err = ParseLevel(&Config{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	level, err = ParseLevel(nil)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)

	_, err = ParseLevel(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestDefaultOTelConfig(t *testing.T) {
	config := DefaultOTelConfig()

	assert.Equal(t, Duration(5*time.Second), config.BatchTimeout)
	assert.NotEmpty(t, config.ServiceName)
}

func TestOTelWriterRequiresEnabledEndpoint(t *testing.T) {
	writer, err := NewOTELWriter(context.Background(), OTelConfig{Enabled: false})
	require.ErrorIs(t, err, ErrOTelLoggingDisabled)
	assert.Nil(t, writer)

	writer, err = NewOTELWriter(context.Background(), OTelConfig{Enabled: true})
	require.ErrorIs(t, err, ErrOTelEndpointRequired)
	assert.Nil(t, writer)
}

func TestInitializeMetricsDisabled(t *testing.T) {
	_, err := InitializeMetrics(context.Background(), MetricsConfig{})
	assert.ErrorIs(t, err, ErrOTelMetricsDisabled)
}

func TestMultiWriterFansOut(t *testing.T) {
	var a, b bytes.Buffer

	mw := NewMultiWriter(&a, &b)

	n, err := mw.Write([]byte("probe\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "probe\n", a.String())
	assert.Equal(t, "probe\n", b.String())
}

func TestWriterLoggerEmitsComponent(t *testing.T) {
	var buf bytes.Buffer

	log := NewWriterLogger(&buf, zerolog.InfoLevel)
	componentLog := log.WithComponent("catchall")
	componentLog.Info().Int("port", 22).Msg("bound")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "catchall", entry["component"])
	assert.Equal(t, "bound", entry["message"])
	assert.EqualValues(t, 22, entry["port"])
}
