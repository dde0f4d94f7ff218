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

// Package geoip resolves attacker source addresses to ISO country codes using a MaxMind database.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
)

var errDatabasePathRequired = errors.New("geoip database path is required")

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Locator maps an IP address to a country code. A nil *Locator returns "" for every lookup.
type Locator struct {
	mu     sync.RWMutex
	reader *maxminddb.Reader
}

// Open loads a GeoLite2/GeoIP2 country or city database.
func Open(path string) (*Locator, error) {
	if path == "" {
		return nil, errDatabasePathRequired
	}

	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database %s: %w", path, err)
	}

	return &Locator{reader: reader}, nil
}

// Country returns the ISO 3166 code for ip, or "" when unknown.
func (l *Locator) Country(ip string) string {
	if l == nil {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.reader == nil {
		return ""
	}

	var record countryRecord
	if err := l.reader.Lookup(parsed, &record); err != nil {
		return ""
	}

	return record.Country.ISOCode
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reader == nil {
		return nil
	}

	err := l.reader.Close()
	l.reader = nil

	return err
}
