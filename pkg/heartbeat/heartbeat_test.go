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

package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/logger"
)

var errCollect = errors.New("collector unavailable")

type staticLister []string

func (s staticLister) RunningServices() []string { return s }

func TestBeatCollectsHostStats(t *testing.T) {
	mem0 := events.NewMemory()
	e := New(time.Minute, mem0, staticLister{"LISTEN", "SSH"}, logger.NewTestLogger())

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }
	e.uptimeCollector = func(context.Context) (uint64, error) { return 3600, nil }
	e.usageCollector = func(context.Context, time.Duration, bool) ([]float64, error) { return []float64{12.5}, nil }
	e.memCollector = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: 41.0}, nil
	}

	hb := e.Beat(context.Background())

	assert.Equal(t, uint64(3600), hb.UptimeSeconds)
	assert.InDelta(t, 12.5, hb.CPUPercent, 0.001)
	assert.InDelta(t, 41.0, hb.MemoryUsedPercent, 0.001)
	assert.Equal(t, []string{"LISTEN", "SSH"}, hb.RunningServices)
	assert.Equal(t, fixed, hb.Timestamp)

	require.Len(t, mem0.Heartbeats(), 1)
}

func TestBeatToleratesCollectorFailures(t *testing.T) {
	rec := events.NewMemory()
	e := New(time.Minute, rec, staticLister{}, logger.NewTestLogger())

	e.uptimeCollector = func(context.Context) (uint64, error) { return 0, errCollect }
	e.usageCollector = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, errCollect }
	e.memCollector = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errCollect }

	hb := e.Beat(context.Background())

	assert.Zero(t, hb.UptimeSeconds)
	assert.Zero(t, hb.CPUPercent)
	assert.Zero(t, hb.MemoryUsedPercent)
	assert.Len(t, rec.Heartbeats(), 1)
}

func TestEmitterLoop(t *testing.T) {
	rec := events.NewMemory()
	e := New(20*time.Millisecond, rec, staticLister{"LISTEN"}, logger.NewTestLogger())

	e.uptimeCollector = func(context.Context) (uint64, error) { return 1, nil }
	e.usageCollector = func(context.Context, time.Duration, bool) ([]float64, error) { return []float64{1}, nil }
	e.memCollector = func(context.Context) (*mem.VirtualMemoryStat, error) { return &mem.VirtualMemoryStat{}, nil }

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Start(context.Background()))

	require.Eventually(t, func() bool { return len(rec.Heartbeats()) >= 3 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Stop(context.Background()))

	count := len(rec.Heartbeats())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, count, len(rec.Heartbeats()), "no heartbeats after stop")
	assert.NoError(t, e.Stop(context.Background()))
}
