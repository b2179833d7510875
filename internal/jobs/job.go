// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"time"

	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/ffmpeg"
)

// State is the lifecycle position of a conversion job.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Request asks for one conversion on behalf of a connected client.
type Request struct {
	ClientID  string
	InputPath string
	// DisplayName is the file name offered to the client on download.
	DisplayName string
	Options     ffmpeg.Options
}

// Job is a point-in-time view of a conversion.
type Job struct {
	ID           string
	ClientID     string
	InputPath    string
	OutputPath   string
	DisplayName  string
	State        State
	StartedAt    time.Time
	TotalSeconds float64 // 0 while unknown
	Percent      int
	ExitCode     int
	Stalled      bool
}

// Process is a started transcoder as seen by the manager.
type Process interface {
	// Lines streams diagnostic output and is closed when the output ends.
	Lines() <-chan string
	// Wait blocks until exit. It may be called more than once.
	Wait() (int, error)
	// Kill terminates the process. It is idempotent.
	Kill() error
}

// ProcessRunner starts transcoder processes.
type ProcessRunner interface {
	Start(ctx context.Context, bin string, args []string) (Process, error)
}

// ClientDirectory answers whether a client is connected.
type ClientDirectory interface {
	Has(clientID string) bool
}

// Notifier pushes events to a client. A false return means the client did
// not receive it.
type Notifier interface {
	Dispatch(clientID string, ev events.Event) bool
	DispatchUpdate(clientID string, u ffmpeg.Update) bool
}

// Cleaner removes job files.
type Cleaner interface {
	OnJobTerminal(j Job)
	Release(path string)
	Discard(path string)
}
