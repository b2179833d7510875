// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/ffmpeg"
	"github.com/ManuGH/oggconv/internal/jobs"
)

// fakeProcess replays a scripted stderr and then waits to be finished or
// killed.
type fakeProcess struct {
	lines  chan string
	exitCh chan int
	kill   chan struct{}
	done   chan struct{}

	killOnce sync.Once
	kills    atomic.Int32
	code     int
}

func newFakeProcess(script ...string) *fakeProcess {
	p := &fakeProcess{
		lines:  make(chan string),
		exitCh: make(chan int, 1),
		kill:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run(script)
	return p
}

func (p *fakeProcess) run(script []string) {
	defer close(p.done)
	defer close(p.lines)
	for _, l := range script {
		select {
		case p.lines <- l:
		case <-p.kill:
			p.code = -1
			return
		}
	}
	select {
	case p.code = <-p.exitCh:
	case <-p.kill:
		p.code = -1
	}
}

// finish makes the process exit with code once its script is consumed.
func (p *fakeProcess) finish(code int) { p.exitCh <- code }

func (p *fakeProcess) Lines() <-chan string { return p.lines }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	if p.code != 0 {
		return p.code, fmt.Errorf("exit status %d", p.code)
	}
	return 0, nil
}

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	p.killOnce.Do(func() { close(p.kill) })
	return nil
}

func (p *fakeProcess) Tail(int) []string { return []string{"tail"} }

type fakeRunner struct {
	mu    sync.Mutex
	procs []*fakeProcess
	calls [][]string
	err   error
}

func (r *fakeRunner) queue(p *fakeProcess) *fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs = append(r.procs, p)
	return p
}

func (r *fakeRunner) Start(_ context.Context, bin string, args []string) (jobs.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{bin}, args...))
	if r.err != nil {
		return nil, r.err
	}
	if len(r.procs) == 0 {
		return nil, errors.New("no scripted process")
	}
	p := r.procs[0]
	r.procs = r.procs[1:]
	return p, nil
}

func (r *fakeRunner) lastArgs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

type sent struct {
	clientID string
	ev       events.Event
}

// fakeClients is both the client directory and the notifier. Like the real
// registry it drops events for clients that are not connected.
type fakeClients struct {
	mu   sync.Mutex
	live map[string]bool
	log  []sent
}

func newFakeClients(ids ...string) *fakeClients {
	c := &fakeClients{live: map[string]bool{}}
	for _, id := range ids {
		c.live[id] = true
	}
	return c
}

func (c *fakeClients) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live[id]
}

func (c *fakeClients) disconnect(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, id)
}

func (c *fakeClients) Dispatch(id string, ev events.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live[id] {
		return false
	}
	c.log = append(c.log, sent{id, ev})
	return true
}

func (c *fakeClients) DispatchUpdate(id string, u ffmpeg.Update) bool {
	ev, ok := events.FromUpdate(u)
	if !ok {
		return false
	}
	return c.Dispatch(id, ev)
}

func (c *fakeClients) eventsFor(id string) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, s := range c.log {
		if s.clientID == id {
			out = append(out, s.ev)
		}
	}
	return out
}

func (c *fakeClients) count(id string, typ events.Type) int {
	n := 0
	for _, ev := range c.eventsFor(id) {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
