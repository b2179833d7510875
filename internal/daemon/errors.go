// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingConfig is returned when New is called without a config holder.
	ErrMissingConfig = errors.New("config holder is required")

	// ErrServerStartFailed wraps listener and serve failures.
	ErrServerStartFailed = errors.New("server failed to start")
)
