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

package scan

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
)

var (
	errTransientRead = errors.New("transient read error")
	errNoPrivilege   = errors.New("operation not permitted")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// fakeSource hands out queued packets and unblocks readers on Close.
type fakeSource struct {
	packets chan []byte
	closed  chan struct{}
	once    sync.Once
	readers atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		packets: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSource) ReadPacket(buf []byte) (int, error) {
	s.readers.Add(1)
	defer s.readers.Add(-1)

	select {
	case p := <-s.packets:
		return copy(buf, p), nil
	case <-s.closed:
		return 0, net.ErrClosed
	}
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })

	return nil
}

func (s *fakeSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func segment(ip string, port int, flags uint8) Segment {
	return Segment{Version: 4, Protocol: 6, SourceIP: net.ParseIP(ip), DestPort: port, Flags: flags}
}

func newTestDetector(clock *fakeClock, rec events.Recorder, opts ...Option) *Detector {
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	return NewDetector(Config{Timeout: 5 * time.Second, SweepInterval: 10 * time.Millisecond},
		rec, logger.NewTestLogger(), opts...)
}

func totalPending(d *Detector) int {
	return d.PendingCount(models.ScanSYN) + d.PendingCount(models.ScanFIN) + d.PendingCount(models.ScanXMAS)
}

func TestACKSuppressesPendingSYN(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	d := newTestDetector(clock, mem)

	d.observe(segment("203.0.113.5", 22, FlagSYN))
	clock.Advance(2 * time.Second)
	d.observe(segment("203.0.113.5", 22, FlagACK))

	clock.Advance(10 * time.Second)
	d.sweep()

	assert.Empty(t, mem.Scans())
	assert.Equal(t, 0, totalPending(d))
}

func TestACKClearsEveryTableForItsKeyOnly(t *testing.T) {
	clock := newFakeClock()
	d := newTestDetector(clock, events.NewMemory())

	d.observe(segment("203.0.113.5", 22, FlagSYN))
	d.observe(segment("203.0.113.5", 22, FlagFIN))
	d.observe(segment("203.0.113.5", 22, FlagsXMAS))
	d.observe(segment("203.0.113.5", 23, FlagSYN))
	d.observe(segment("203.0.113.6", 22, FlagSYN))

	d.observe(segment("203.0.113.5", 22, FlagACK))

	assert.Equal(t, 2, d.PendingCount(models.ScanSYN))
	assert.Equal(t, 0, d.PendingCount(models.ScanFIN))
	assert.Equal(t, 0, d.PendingCount(models.ScanXMAS))
}

func TestTimeoutReportsExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	d := newTestDetector(clock, mem)

	seenAt := clock.Now()
	d.observe(segment("198.51.100.77", 443, FlagSYN))

	clock.Advance(5 * time.Second)
	d.sweep()
	assert.Empty(t, mem.Scans(), "an entry exactly at the timeout is not yet a scan")

	clock.Advance(time.Millisecond)
	d.sweep()

	require.Len(t, mem.Scans(), 1)

	scan := mem.Scans()[0]
	assert.Equal(t, models.ScanSYN, scan.Kind)
	assert.Equal(t, "198.51.100.77", scan.SourceIP)
	assert.Equal(t, 443, scan.DestPort)
	assert.True(t, seenAt.Equal(scan.ObservedAt), "observed time is when the segment was seen")
	assert.Equal(t, 0, totalPending(d))

	clock.Advance(30 * time.Second)
	d.sweep()
	d.sweep()

	assert.Len(t, mem.Scans(), 1)
}

func TestFINAndXMASTimeouts(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	d := newTestDetector(clock, mem)

	d.observe(segment("192.0.2.1", 21, FlagFIN))
	d.observe(segment("192.0.2.1", 25, FlagsXMAS))

	clock.Advance(6 * time.Second)
	d.sweep()

	require.Len(t, mem.Scans(), 2)

	kinds := map[models.ScanKind]int{}
	for _, s := range mem.Scans() {
		kinds[s.Kind] = s.DestPort
	}

	assert.Equal(t, map[models.ScanKind]int{models.ScanFIN: 21, models.ScanXMAS: 25}, kinds)
}

func TestRepeatedSYNRefreshesAge(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	d := newTestDetector(clock, mem)

	d.observe(segment("192.0.2.8", 3389, FlagSYN))
	clock.Advance(4 * time.Second)
	d.observe(segment("192.0.2.8", 3389, FlagSYN))
	clock.Advance(4 * time.Second)
	d.sweep()

	assert.Empty(t, mem.Scans())

	clock.Advance(2 * time.Second)
	d.sweep()

	assert.Len(t, mem.Scans(), 1)
}

func TestNULLReportedImmediately(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	d := newTestDetector(clock, mem)

	d.observe(segment("192.0.2.99", 139, 0))

	require.Len(t, mem.Scans(), 1)
	assert.Equal(t, models.ScanNULL, mem.Scans()[0].Kind)
	assert.Equal(t, 139, mem.Scans()[0].DestPort)
	assert.Equal(t, 0, totalPending(d))
}

func TestOtherFlagCombinationsIgnored(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	d := newTestDetector(clock, mem)

	for _, flags := range []uint8{FlagSYN | FlagACK, FlagRST, FlagRST | FlagACK, FlagPSH | FlagACK, FlagFIN | FlagACK} {
		d.observe(segment("192.0.2.50", 80, flags))
	}

	clock.Advance(time.Minute)
	d.sweep()

	assert.Empty(t, mem.Scans())
	assert.Equal(t, 0, totalPending(d))
}

func TestCaptureLoopSkipsMalformedPackets(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	src := newFakeSource()

	d := newTestDetector(clock, mem, WithSourceOpener(func() (PacketSource, error) { return src, nil }))

	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	src.packets <- []byte{0x45, 0x00}
	src.packets <- craftSegment(t, "203.0.113.200", 5900, 0)[:30]
	src.packets <- craftSegment(t, "203.0.113.200", 5900, 0)

	require.Eventually(t, func() bool { return len(mem.Scans()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, models.ScanNULL, mem.Scans()[0].Kind)
	assert.True(t, d.Running())
}

func TestSweepLoopReportsExpiredSegments(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()
	src := newFakeSource()

	d := newTestDetector(clock, mem, WithSourceOpener(func() (PacketSource, error) { return src, nil }))

	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	src.packets <- craftSegment(t, "203.0.113.201", 22, FlagSYN)

	require.Eventually(t, func() bool { return d.PendingCount(models.ScanSYN) == 1 }, 5*time.Second, 5*time.Millisecond)

	clock.Advance(6 * time.Second)

	require.Eventually(t, func() bool { return len(mem.Scans()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(mem.Scans()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestStopStartUsesFreshWorkers(t *testing.T) {
	clock := newFakeClock()
	mem := events.NewMemory()

	var (
		mu      sync.Mutex
		sources []*fakeSource
	)

	open := func() (PacketSource, error) {
		mu.Lock()
		defer mu.Unlock()

		src := newFakeSource()
		sources = append(sources, src)

		return src, nil
	}

	d := newTestDetector(clock, mem, WithSourceOpener(open))
	ctx := context.Background()

	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx), "second start is a no-op")
	require.NoError(t, d.Stop(ctx))

	assert.False(t, d.Running())
	assert.True(t, sources[0].isClosed())
	assert.Equal(t, int32(0), sources[0].readers.Load(), "capture loop must exit before Stop returns")

	require.NoError(t, d.Stop(ctx), "second stop is a no-op")
	require.NoError(t, d.Start(ctx))

	t.Cleanup(func() { _ = d.Stop(ctx) })

	require.Len(t, sources, 2)

	sources[1].packets <- craftSegment(t, "192.0.2.33", 8443, 0)

	require.Eventually(t, func() bool { return len(mem.Scans()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(mem.Scans()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestStartDisabledWhenSourceUnavailable(t *testing.T) {
	d := newTestDetector(newFakeClock(), events.NewMemory(), WithSourceOpener(func() (PacketSource, error) {
		return nil, errNoPrivilege
	}))

	err := d.Start(context.Background())

	require.ErrorIs(t, err, ErrDetectorDisabled)
	assert.ErrorIs(t, err, errNoPrivilege)
	assert.False(t, d.Running())
	assert.NoError(t, d.Stop(context.Background()))
}

func TestCaptureLoopSurvivesReadErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockPacketSource(ctrl)
	mem := events.NewMemory()
	closed := make(chan struct{})

	null := craftSegment(t, "198.51.100.200", 1433, 0)

	gomock.InOrder(
		src.EXPECT().ReadPacket(gomock.Any()).Return(0, errTransientRead),
		src.EXPECT().ReadPacket(gomock.Any()).DoAndReturn(func(buf []byte) (int, error) {
			return copy(buf, null), nil
		}),
		src.EXPECT().ReadPacket(gomock.Any()).DoAndReturn(func(_ []byte) (int, error) {
			<-closed
			return 0, net.ErrClosed
		}).AnyTimes(),
	)

	src.EXPECT().Close().DoAndReturn(func() error {
		close(closed)
		return nil
	})

	d := newTestDetector(newFakeClock(), mem, WithSourceOpener(func() (PacketSource, error) { return src, nil }))

	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return len(mem.Scans()) == 1 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, d.Stop(context.Background()))
}

func TestServiceIdentity(t *testing.T) {
	d := NewDetector(ConfigFrom(models.ScanConfig{}), events.NewMemory(), logger.NewTestLogger())

	assert.Equal(t, models.ScanServiceName, d.Name())
	assert.Equal(t, 0, d.Port())
	assert.Equal(t, models.DefaultScanTimeout, d.cfg.Timeout)
	assert.Equal(t, models.DefaultSweepInterval, d.cfg.SweepInterval)
}
