// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog detects transcodes whose encoded position stops advancing.
package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/oggconv/internal/log"
)

// ErrStalled is returned by Run when no progress was observed within the
// stall timeout.
var ErrStalled = errors.New("transcoder stalled")

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStalled:
		return "stalled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Watchdog tracks the furthest encoded position of one job.
type Watchdog struct {
	mu sync.RWMutex

	stallTimeout time.Duration
	interval     time.Duration

	lastPosition  float64
	lastHeartbeat time.Time
	state         State

	clock clock
}

// New creates a watchdog that fires after stallTimeout without progress.
// The same limit applies before the first position is seen.
func New(stallTimeout time.Duration) *Watchdog {
	interval := time.Second
	if stallTimeout > 0 && stallTimeout < 4*interval {
		interval = stallTimeout / 4
	}
	return &Watchdog{
		stallTimeout: stallTimeout,
		interval:     interval,
		clock:        realClock{},
	}
}

// Run blocks until ctx is done, Stop is called, or the job stalls.
// It returns ErrStalled only in the last case.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	w.lastHeartbeat = w.clock.Now()
	if w.state != StateStopped {
		w.state = StateStarting
	}
	w.mu.Unlock()

	t := w.clock.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			stop, err := w.check()
			if err != nil || stop {
				return err
			}
		}
	}
}

// Observe records an encoded position in seconds. Only forward movement
// counts as a heartbeat.
func (w *Watchdog) Observe(position float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if position <= w.lastPosition || w.state == StateStopped || w.state == StateStalled {
		return
	}
	w.lastPosition = position
	w.lastHeartbeat = w.clock.Now()
	if w.state == StateStarting {
		w.state = StateRunning
		logger := log.WithComponent("watchdog")
		logger.Debug().Float64("position", position).Msg("first progress observed")
	}
}

// Stop ends monitoring; a pending Run returns nil on its next tick.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateStalled {
		w.state = StateStopped
	}
}

func (w *Watchdog) check() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateStopped:
		return true, nil
	case StateStarting, StateRunning:
		if w.clock.Now().Sub(w.lastHeartbeat) > w.stallTimeout {
			w.state = StateStalled
			return true, ErrStalled
		}
	}
	return false, nil
}

// State returns the current watchdog state.
func (w *Watchdog) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}
