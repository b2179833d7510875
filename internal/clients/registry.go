// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package clients keeps the set of connected push clients.
package clients

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/log"
	"github.com/ManuGH/oggconv/internal/metrics"
)

// Handle is one live push connection.
type Handle interface {
	// Deliver queues ev for the client. An error means the event was lost.
	Deliver(ev events.Event) error
	Close() error
}

// Registry maps client ids to push handles. The zero value is not usable;
// construct with NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]Handle
	listeners []func(clientID string)

	newID func() string
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Handle),
		newID: newClientID,
	}
}

// newClientID returns a UUIDv7: millisecond timestamp prefix plus random bits.
func newClientID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Register stores h under a fresh id and returns the id.
func (r *Registry) Register(h Handle) string {
	r.mu.Lock()
	id := r.newID()
	for r.conns[id] != nil {
		id = r.newID()
	}
	r.conns[id] = h
	n := len(r.conns)
	r.mu.Unlock()

	metrics.SetClientsConnected(n)
	logger := log.WithComponent("clients")
	logger.Debug().
		Str(log.FieldClientID, id).
		Str(log.FieldEvent, "client.connected").
		Int("clients", n).
		Msg("client registered")
	return id
}

// Unregister removes the client, closes its handle and notifies disconnect
// listeners. It reports whether the client was registered; unknown ids are
// a no-op and notify nobody.
func (r *Registry) Unregister(clientID string) bool {
	r.mu.Lock()
	h, ok := r.conns[clientID]
	if ok {
		delete(r.conns, clientID)
	}
	n := len(r.conns)
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	if !ok {
		return false
	}

	metrics.SetClientsConnected(n)
	logger := log.WithComponent("clients")
	if err := h.Close(); err != nil {
		logger.Debug().Err(err).Str(log.FieldClientID, clientID).Msg("close push handle")
	}
	for _, fn := range listeners {
		fn(clientID)
	}
	logger.Debug().
		Str(log.FieldClientID, clientID).
		Str(log.FieldEvent, "client.disconnected").
		Int("clients", n).
		Msg("client unregistered")
	return true
}

// OnDisconnect registers fn to run after a client is unregistered.
// Listeners run on the unregistering goroutine without registry locks held.
func (r *Registry) OnDisconnect(fn func(clientID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Send delivers ev to the client. Unknown clients and failed deliveries are
// dropped silently and counted.
func (r *Registry) Send(clientID string, ev events.Event) bool {
	r.mu.RLock()
	h, ok := r.conns[clientID]
	r.mu.RUnlock()

	if !ok {
		metrics.IncEventDropped(string(ev.Type))
		return false
	}
	if err := h.Deliver(ev); err != nil {
		metrics.IncEventDropped(string(ev.Type))
		logger := log.WithComponent("clients")
		logger.Debug().Err(err).
			Str(log.FieldClientID, clientID).
			Str(log.FieldEvent, string(ev.Type)).
			Msg("event dropped")
		return false
	}
	metrics.IncEventDispatched(string(ev.Type))
	return true
}

// Has reports whether clientID is registered.
func (r *Registry) Has(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[clientID]
	return ok
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll unregisters every client.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Unregister(id)
	}
}
