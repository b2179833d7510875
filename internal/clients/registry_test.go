// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package clients

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/oggconv/internal/events"
)

type fakeHandle struct {
	mu      sync.Mutex
	got     []events.Event
	closed  int
	failing bool
}

func (h *fakeHandle) Deliver(ev events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failing || h.closed > 0 {
		return ErrClosed
	}
	h.got = append(h.got, ev)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandle) events() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Event(nil), h.got...)
}

func TestRegistry_RegisterAssignsUUIDv7(t *testing.T) {
	r := NewRegistry()
	a := r.Register(&fakeHandle{})
	b := r.Register(&fakeHandle{})

	assert.NotEqual(t, a, b)
	for _, id := range []string{a, b} {
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
	}
	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Has(a))
}

func TestRegistry_RegisterSkipsCollisions(t *testing.T) {
	r := NewRegistry()
	ids := []string{"dup", "dup", "fresh"}
	r.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	assert.Equal(t, "dup", r.Register(&fakeHandle{}))
	assert.Equal(t, "fresh", r.Register(&fakeHandle{}))
}

func TestRegistry_SendDeliversOrDrops(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	id := r.Register(h)

	assert.True(t, r.Send(id, events.Progress(5)))
	assert.False(t, r.Send("nobody", events.Progress(6)))

	h.failing = true
	assert.False(t, r.Send(id, events.Progress(7)))

	assert.Equal(t, []events.Event{events.Progress(5)}, h.events())
}

func TestRegistry_UnregisterClosesAndNotifies(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	id := r.Register(h)

	var notified []string
	r.OnDisconnect(func(clientID string) {
		// Listeners may call back into the registry.
		assert.False(t, r.Has(clientID))
		notified = append(notified, clientID)
	})

	require.True(t, r.Unregister(id))
	assert.False(t, r.Unregister(id), "second unregister is a no-op")

	assert.Equal(t, []string{id}, notified)
	assert.Equal(t, 1, h.closed)
	assert.Equal(t, 0, r.Count())
	assert.False(t, r.Send(id, events.Log("late")), "no event after disconnect")
	assert.Empty(t, h.events())
}

func TestRegistry_ListenerAddedDuringNotifyRunsNextTime(t *testing.T) {
	r := NewRegistry()
	first := r.Register(&fakeHandle{})
	second := r.Register(&fakeHandle{})

	var late []string
	r.OnDisconnect(func(string) {
		r.OnDisconnect(func(clientID string) { late = append(late, clientID) })
	})

	require.True(t, r.Unregister(first))
	assert.Empty(t, late, "listener registered mid-notify is not part of the current snapshot")

	require.True(t, r.Unregister(second))
	assert.Equal(t, []string{second}, late)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry()
	var disconnects sync.WaitGroup
	r.OnDisconnect(func(string) { disconnects.Done() })

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		disconnects.Add(1)
		go func() {
			defer wg.Done()
			id := r.Register(&fakeHandle{})
			for j := 0; j < 20; j++ {
				r.Send(id, events.Progress(j))
			}
			r.Unregister(id)
		}()
	}
	wg.Wait()
	disconnects.Wait()
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	handles := []*fakeHandle{{}, {}, {}}
	for _, h := range handles {
		r.Register(h)
	}

	r.CloseAll()
	assert.Equal(t, 0, r.Count())
	for _, h := range handles {
		assert.Equal(t, 1, h.closed)
	}
}
