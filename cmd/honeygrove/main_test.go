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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCommand(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := filepath.Join(t.TempDir(), "honeygrove.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hpid":"HP4","catch_all":{"first_port":1,"last_port":1024}}`), 0o600))

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--config", path})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "HP4: 9 services, catch-all 1-1024\n", out.String())
}

func TestCheckCommandRejectsInvalidConfig(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := filepath.Join(t.TempDir(), "honeygrove.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"catch_all":{"first_port":10,"last_port":5}}`), 0o600))

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "-c", path})

	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestCheckCommandRejectsMisspelledKey(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := filepath.Join(t.TempDir(), "honeygrove.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hpid":"HP4","catch_al":{"first_port":10,"last_port":5}}`), 0o600))

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "-c", path})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown configuration key "catch_al"`)
	assert.Empty(t, out.String())
}
