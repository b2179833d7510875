// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import (
	"github.com/ManuGH/oggconv/internal/ffmpeg"
	"github.com/ManuGH/oggconv/internal/log"
)

// Sender delivers an event to one client. It reports whether the event was
// handed to a live connection; a false return is not an error.
type Sender interface {
	Send(clientID string, ev Event) bool
}

// Dispatcher routes events to clients by id.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Dispatch sends ev to clientID. Delivery failure is logged at trace level
// and otherwise ignored.
func (d *Dispatcher) Dispatch(clientID string, ev Event) bool {
	ok := d.sender.Send(clientID, ev)
	if !ok {
		logger := log.WithComponent("events")
		logger.Trace().
			Str(log.FieldClientID, clientID).
			Str(log.FieldEvent, string(ev.Type)).
			Msg("event not delivered")
	}
	return ok
}

// DispatchUpdate translates a parser update into its event and sends it.
func (d *Dispatcher) DispatchUpdate(clientID string, u ffmpeg.Update) bool {
	ev, ok := FromUpdate(u)
	if !ok {
		return false
	}
	return d.Dispatch(clientID, ev)
}

// FromUpdate maps a parser update to its wire event.
func FromUpdate(u ffmpeg.Update) (Event, bool) {
	switch u.Kind {
	case ffmpeg.UpdateLog:
		return Log(u.Line), true
	case ffmpeg.UpdateDuration:
		return Duration(u.Seconds), true
	case ffmpeg.UpdateProgress:
		return Progress(u.Percent), true
	default:
		return Event{}, false
	}
}
