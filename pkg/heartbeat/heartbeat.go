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

// Package heartbeat periodically reports that a node is alive, with basic host load.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
)

// ServiceLister reports which services are running. The supervisor implements it.
type ServiceLister interface {
	RunningServices() []string
}

// Emitter sends a heartbeat event on a fixed interval.
type Emitter struct {
	interval time.Duration
	recorder events.Recorder
	services ServiceLister
	log      logger.Logger

	uptimeCollector func(context.Context) (uint64, error)
	usageCollector  func(context.Context, time.Duration, bool) ([]float64, error)
	memCollector    func(context.Context) (*mem.VirtualMemoryStat, error)
	now             func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, recorder events.Recorder, services ServiceLister, log logger.Logger) *Emitter {
	if interval <= 0 {
		interval = models.DefaultHeartbeatInterval
	}

	return &Emitter{
		interval:        interval,
		recorder:        recorder,
		services:        services,
		log:             log,
		uptimeCollector: host.UptimeWithContext,
		usageCollector:  cpu.PercentWithContext,
		memCollector:    mem.VirtualMemoryWithContext,
		now:             time.Now,
	}
}

// Start sends one heartbeat immediately and then one per interval until Stop.
func (e *Emitter) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	e.cancel = cancel
	e.done = done

	go e.run(loopCtx, done)

	return nil
}

// Stop ends the loop and waits for it to exit.
func (e *Emitter) Stop(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel == nil {
		return nil
	}

	e.cancel()
	<-e.done

	e.cancel = nil
	e.done = nil

	return nil
}

func (e *Emitter) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.Beat(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Beat(ctx)
		}
	}
}

// Beat collects host statistics and records one heartbeat. Collection failures are
// logged and reported as zero values.
func (e *Emitter) Beat(ctx context.Context) models.HeartbeatEvent {
	hb := models.HeartbeatEvent{
		RunningServices: e.services.RunningServices(),
		Timestamp:       e.now().UTC(),
	}

	if uptime, err := e.uptimeCollector(ctx); err != nil {
		e.log.Debug().Err(err).Msg("uptime collection failed")
	} else {
		hb.UptimeSeconds = uptime
	}

	if usage, err := e.usageCollector(ctx, 0, false); err != nil {
		e.log.Debug().Err(err).Msg("cpu collection failed")
	} else if len(usage) > 0 {
		hb.CPUPercent = usage[0]
	}

	if vm, err := e.memCollector(ctx); err != nil {
		e.log.Debug().Err(err).Msg("memory collection failed")
	} else if vm != nil {
		hb.MemoryUsedPercent = vm.UsedPercent
	}

	e.recorder.LogHeartbeat(hb)

	return hb
}
