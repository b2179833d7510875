// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import "errors"

var (
	// ErrUnknownClient is returned when Start names a client that is not connected.
	ErrUnknownClient = errors.New("unknown client")
	// ErrJobAlreadyRunning is returned when the client already has a job in flight.
	ErrJobAlreadyRunning = errors.New("job already running for client")
	// ErrArgumentBuild is returned when no transcoder command line could be built.
	ErrArgumentBuild = errors.New("build transcoder arguments")
	// ErrSpawn is returned when the transcoder could not be started.
	ErrSpawn = errors.New("start transcoder")
	// ErrShuttingDown is returned by Start once Shutdown has begun.
	ErrShuttingDown = errors.New("job manager shutting down")
)
