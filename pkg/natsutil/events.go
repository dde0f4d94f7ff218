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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/honeygrove/honeygrove/pkg/models"
)

var errStreamRequired = errors.New("stream name is required")

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
	source string
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js jetstream.JetStream, streamName, source string) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
		source: source,
	}
}

// Publish wraps data in a CloudEvent envelope and publishes it on subject.
func (p *EventPublisher) Publish(ctx context.Context, subject, eventType string, ts time.Time, data interface{}) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          p.source,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &ts,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	if _, err := p.js.Publish(ctx, subject, eventBytes); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	return nil
}

// CreateEventPublisher creates an EventPublisher with optional NATS domain support,
// creating the stream or widening its subject list when needed.
func CreateEventPublisher(
	ctx context.Context, nc *nats.Conn, domain, streamName, source string, subjects []string) (*EventPublisher, error) {
	if streamName == "" {
		return nil, errStreamRequired
	}

	var (
		js  jetstream.JetStream
		err error
	)

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	if len(subjects) == 0 {
		subjects = []string{models.EventSubjectPrefix + ".>"}
	}

	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create or get stream %s: %w", streamName, err)
		}

		return NewEventPublisher(js, streamName, source), nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", streamName, err)
	}

	merged := append([]string(nil), info.Config.Subjects...)
	for _, subject := range subjects {
		merged = ensureSubjectList(merged, subject)
	}

	if len(merged) != len(info.Config.Subjects) {
		cfg := info.Config
		cfg.Subjects = merged

		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to extend subjects of stream %s: %w", streamName, err)
		}
	}

	return NewEventPublisher(js, streamName, source), nil
}

// ensureSubjectList appends subject unless an existing pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, existing := range subjects {
		if matchesSubject(existing, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether a NATS subject pattern covers subject.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	patternTokens := strings.Split(pattern, ".")
	subjectTokens := strings.Split(subject, ".")

	for i, token := range patternTokens {
		if token == ">" {
			return len(subjectTokens) > i
		}

		if i >= len(subjectTokens) {
			return false
		}

		if token != "*" && token != subjectTokens[i] {
			return false
		}
	}

	return len(patternTokens) == len(subjectTokens)
}
