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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/honeygrove/honeygrove/pkg/logger"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")

	errUnsupportedEnvKind = errors.New("field kind cannot be set from the environment")
)

// EnvConfigLoader fills a node configuration from environment variables named after the
// JSON tags, upper-cased and joined with underscores under a prefix:
// HONEYGROVE_CATCH_ALL_FIRST_PORT sets CatchAll.FirstPort.
//
// Scalars are plain strings. Durations use the models.Duration syntax. []string takes a
// comma-separated list; other slices and maps take JSON. <prefix>CONFIG_JSON, when set,
// replaces the per-field lookup with a single JSON document.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvConfigLoader creates a loader reading variables under prefix.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{
		logger: log,
		prefix: prefix,
	}
}

// Load implements ConfigLoader. The path argument is unused.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if blob := os.Getenv(e.prefix + "CONFIG_JSON"); blob != "" {
		if err := json.Unmarshal([]byte(blob), dst); err != nil {
			return fmt.Errorf("failed to decode %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.debug().Msg("Loaded node configuration from CONFIG_JSON")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	if v.Elem().Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	set := e.walk(v.Elem(), strings.TrimSuffix(e.prefix, "_"))

	e.debug().Int("variables", set).Msg("Loaded node configuration from environment")

	return nil
}

func (e *EnvConfigLoader) debug() *zerolog.Event {
	if e.logger == nil {
		return nil
	}

	return e.logger.Debug()
}

// walk assigns every tagged field of v whose variable is set and returns how many were.
// A bad value is logged and the field keeps its previous value; validation catches what matters.
func (e *EnvConfigLoader) walk(v reflect.Value, scope string) int {
	t := v.Type()
	set := 0

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		key, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if key == "" || key == "-" {
			continue
		}

		name := envKey(scope, key)

		if target, ok := nestedTarget(field); ok {
			set += e.walk(target, name)

			continue
		}

		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}

		if err := assignEnv(field, raw); err != nil {
			if e.logger != nil {
				e.logger.Warn().Err(err).Str("env", name).Msg("Ignoring environment override")
			}

			continue
		}

		set++
	}

	return set
}

func envKey(scope, key string) string {
	key = strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if scope == "" {
		return key
	}

	return scope + "_" + key
}

// nestedTarget returns the struct a field should be walked into. Nil struct pointers are
// allocated; sections nobody sets stay allocated but zero, which ApplyDefaults handles.
func nestedTarget(field reflect.Value) (reflect.Value, bool) {
	if isJSONDecoded(field) {
		return reflect.Value{}, false
	}

	switch {
	case field.Kind() == reflect.Struct:
		return field, true
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return field.Elem(), true
	default:
		return reflect.Value{}, false
	}
}

func isJSONDecoded(field reflect.Value) bool {
	if !field.CanAddr() {
		return false
	}

	_, ok := field.Addr().Interface().(json.Unmarshaler)

	return ok
}

// assignEnv parses raw into field according to the kinds a node configuration uses.
func assignEnv(field reflect.Value, raw string) error {
	if isJSONDecoded(field) {
		doc := []byte(raw)
		if !json.Valid(doc) {
			doc = []byte(strconv.Quote(raw))
		}

		return json.Unmarshal(doc, field.Addr().Interface())
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		field.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}

		field.SetInt(int64(n))
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			items := strings.Split(raw, ",")
			list := reflect.MakeSlice(field.Type(), len(items), len(items))

			for i, item := range items {
				list.Index(i).SetString(strings.TrimSpace(item))
			}

			field.Set(list)

			return nil
		}

		return json.Unmarshal([]byte(raw), field.Addr().Interface())
	case reflect.Map:
		return json.Unmarshal([]byte(raw), field.Addr().Interface())
	default:
		return fmt.Errorf("%w: %s", errUnsupportedEnvKind, field.Kind())
	}

	return nil
}
