// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events defines the push events sent to clients and the dispatcher
// that routes them.
package events

// Type is the wire discriminator of an Event.
type Type string

const (
	TypeWelcome  Type = "welcome"
	TypeLog      Type = "log"
	TypeDuration Type = "duration"
	TypeProgress Type = "progress"
	TypeDone     Type = "done"
	TypeError    Type = "error"
)

// Event is the JSON envelope pushed to a client: {"type": ..., "data": ...}.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// DonePayload is the data of a done event.
type DonePayload struct {
	DownloadURL string `json:"downloadUrl"`
}

func Welcome(clientID string) Event { return Event{Type: TypeWelcome, Data: clientID} }

func Log(line string) Event { return Event{Type: TypeLog, Data: line} }

func Duration(seconds float64) Event { return Event{Type: TypeDuration, Data: seconds} }

func Progress(percent int) Event { return Event{Type: TypeProgress, Data: percent} }

func Done(downloadURL string) Event {
	return Event{Type: TypeDone, Data: DonePayload{DownloadURL: downloadURL}}
}

func Error(message string) Event { return Event{Type: TypeError, Data: message} }
