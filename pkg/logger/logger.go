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

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ParseLevel resolves the effective level for a config. Debug wins over Level.
func ParseLevel(config *Config) (zerolog.Level, error) {
	if config == nil {
		return zerolog.InfoLevel, nil
	}

	if config.Debug {
		return zerolog.DebugLevel, nil
	}

	if config.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(config.Level)
}

// Output returns the writer named by config.Output, defaulting to stdout.
func Output(config *Config) io.Writer {
	if config != nil && config.Output == "stderr" {
		return os.Stderr
	}

	return os.Stdout
}

// Shutdown flushes and stops any OTel log and metric providers.
func Shutdown() error {
	return ShutdownOTEL()
}
