// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockClock struct {
	mu           sync.Mutex
	now          time.Time
	latestTicker *mockTicker
}

func (m *mockClock) Now() time.Time { m.mu.Lock(); defer m.mu.Unlock(); return m.now }
func (m *mockClock) NewTicker(time.Duration) ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestTicker = &mockTicker{c: make(chan time.Time)}
	return m.latestTicker
}

func (m *mockClock) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *mockClock) ticker(t *testing.T) *mockTicker {
	t.Helper()
	var tk *mockTicker
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		tk = m.latestTicker
		return tk != nil
	}, time.Second, 5*time.Millisecond)
	return tk
}

// mockTicker counts C calls: Run reads C once per loop, so after n
// processed ticks there have been n+1 reads.
type mockTicker struct {
	c     chan time.Time
	reads atomic.Int32
	sent  int32
}

func (m *mockTicker) C() <-chan time.Time { m.reads.Add(1); return m.c }
func (m *mockTicker) Stop()               {}

// tickAndWait delivers one tick and waits until Run has checked it and is
// back in its select loop.
func (m *mockTicker) tickAndWait(t *testing.T, now time.Time) {
	t.Helper()
	m.sent++
	m.c <- now
	require.Eventually(t, func() bool {
		return m.reads.Load() > m.sent
	}, time.Second, time.Millisecond)
}

func start(t *testing.T, w *Watchdog) (<-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	return errCh, cancel
}

func TestWatchdog_NoProgressAtAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &mockClock{now: time.Now()}
	w := New(5 * time.Second)
	w.clock = clock

	errCh, cancel := start(t, w)
	defer cancel()
	tk := clock.ticker(t)

	clock.advance(6 * time.Second)
	tk.c <- clock.Now()

	assert.ErrorIs(t, <-errCh, ErrStalled)
	assert.Equal(t, StateStalled, w.State())
}

func TestWatchdog_StallAfterProgress(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &mockClock{now: time.Now()}
	w := New(5 * time.Second)
	w.clock = clock

	errCh, cancel := start(t, w)
	defer cancel()
	tk := clock.ticker(t)

	clock.advance(3 * time.Second)
	w.Observe(1.5)
	assert.Equal(t, StateRunning, w.State())

	clock.advance(3 * time.Second)
	tk.tickAndWait(t, clock.Now())
	assert.Equal(t, StateRunning, w.State(), "3s since last heartbeat is within the limit")

	// A repeated position is not progress.
	w.Observe(1.5)
	clock.advance(3 * time.Second)
	tk.c <- clock.Now()

	assert.ErrorIs(t, <-errCh, ErrStalled)
	assert.Equal(t, StateStalled, w.State())
}

func TestWatchdog_StopEndsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &mockClock{now: time.Now()}
	w := New(5 * time.Second)
	w.clock = clock

	errCh, cancel := start(t, w)
	defer cancel()
	tk := clock.ticker(t)

	w.Stop()
	clock.advance(time.Minute)
	tk.c <- clock.Now()

	assert.NoError(t, <-errCh)
	assert.Equal(t, StateStopped, w.State())
}

func TestWatchdog_ContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := New(time.Hour)
	errCh, cancel := start(t, w)
	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatchdog_ShortTimeoutTicksFaster(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, New(2*time.Second).interval)
	assert.Equal(t, time.Second, New(time.Minute).interval)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "stalled", StateStalled.String())
	assert.Equal(t, "unknown", State(9).String())
}
