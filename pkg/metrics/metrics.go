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

// Package metrics exposes OTel instruments for honeypot activity.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/honeygrove/honeygrove/pkg/models"
)

const (
	meterName           = "honeygrove"
	metricProbesTotal   = "honeygrove_probes_total"
	metricRequestsTotal = "honeygrove_requests_total"
	metricScansTotal    = "honeygrove_scans_total"
	metricAdmissions    = "honeygrove_admissions_total"
	metricPortLeases    = "honeygrove_port_leases_total"
	metricMalformed     = "honeygrove_malformed_packets_total"
)

var (
	// instrumentation handles are cached globally to avoid re-registering OTEL instruments on every call.
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	probeCounter, requestCounter, scanCounter, admissionCounter, leaseCounter, malformedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	probeCounter = newCounter(meter, metricProbesTotal, "Payload chunks received on catch-all ports")
	requestCounter = newCounter(meter, metricRequestsTotal, "Payloads received by decoy services")
	scanCounter = newCounter(meter, metricScansTotal, "Port scan detections by kind")
	admissionCounter = newCounter(meter, metricAdmissions, "Admission decisions per service")
	leaseCounter = newCounter(meter, metricPortLeases, "Catch-all port hand-offs")
	malformedCounter = newCounter(meter, metricMalformed, "Captured packets that failed to parse")
}

func newCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
		return nil
	}

	return counter
}

func add(ctx context.Context, counter *metric.Int64Counter, attrs ...attribute.KeyValue) {
	meterOnce.Do(initMeter)

	if *counter == nil {
		return
	}

	(*counter).Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProbe counts one payload chunk received on an unclaimed port.
func RecordProbe(ctx context.Context, port int) {
	add(ctx, &probeCounter, attribute.Int("port", port))
}

// RecordRequest counts a payload received by a decoy.
func RecordRequest(ctx context.Context, service string) {
	add(ctx, &requestCounter, attribute.String("service", service))
}

// RecordScan counts a detected scan.
func RecordScan(ctx context.Context, kind models.ScanKind) {
	add(ctx, &scanCounter, attribute.String("kind", string(kind)))
}

// RecordAdmission counts an admit or reject decision.
func RecordAdmission(ctx context.Context, service string, admitted bool) {
	outcome := "admitted"
	if !admitted {
		outcome = "rejected"
	}

	add(ctx, &admissionCounter, attribute.String("service", service), attribute.String("outcome", outcome))
}

// RecordPortLease counts a port moving between the catch-all and a decoy.
func RecordPortLease(ctx context.Context, port int, direction string) {
	add(ctx, &leaseCounter, attribute.Int("port", port), attribute.String("direction", direction))
}

// RecordMalformedPacket counts a capture that could not be parsed.
func RecordMalformedPacket(ctx context.Context) {
	add(ctx, &malformedCounter)
}
