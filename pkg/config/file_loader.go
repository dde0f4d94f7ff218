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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	errUnknownConfigKey = errors.New("unknown configuration key")
	errTrailingConfig   = errors.New("unexpected data after configuration document")
)

// FileConfigLoader reads a node configuration from a JSON file. Keys that no field
// declares are rejected, so a misspelled section fails `honeygrove check` instead of
// silently falling back to defaults.
type FileConfigLoader struct{}

// Load implements ConfigLoader.
func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %q: %w", path, err)
	}

	if err := decodeStrict(data, dst); err != nil {
		return fmt.Errorf("config %q: %w", path, err)
	}

	return nil
}

func decodeStrict(data []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		// encoding/json reports unknown keys only as a formatted string.
		if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return fmt.Errorf("%w %s", errUnknownConfigKey, field)
		}

		return err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingConfig
	}

	return nil
}
