// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts commands in their own process group so that a
// transcoder and any helper it forks can be signalled together.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/oggconv/internal/metrics"
)

var ErrKillFailed = errors.New("kill operation failed")

// Set configures the command to start in a new process group.
// Mandatory for Kill to reach the whole group.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Kill sends sig to the process group of cmd. A nil command, a command that
// never started, or a group that is already gone is not an error.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	name := signalName(sig)
	err := kill(cmd, sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(name, "sent")
	case errors.Is(err, syscall.ESRCH):
		metrics.IncProcTerminate(name, "esrch")
		return nil
	default:
		metrics.IncProcTerminate(name, "error")
	}
	return err
}

func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGKILL:
		return "SIGKILL"
	default:
		return sig.String()
	}
}

// Terminate sends SIGTERM to the group and escalates to SIGKILL when the
// process has not exited within grace. exited must be closed once Wait has
// returned for cmd. Terminate returns immediately; escalation runs in the
// background and stops as soon as exited closes.
func Terminate(cmd *exec.Cmd, exited <-chan struct{}, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-exited:
		return nil
	default:
	}

	if err := Kill(cmd, syscall.SIGTERM); err != nil {
		// SIGTERM could not be delivered; go straight to SIGKILL.
		return Kill(cmd, syscall.SIGKILL)
	}

	if grace <= 0 {
		grace = 5 * time.Second
	}
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-exited:
		case <-timer.C:
			_ = Kill(cmd, syscall.SIGKILL)
		}
	}()
	return nil
}

// WaitGone blocks until exited closes or timeout elapses.
func WaitGone(exited <-chan struct{}, timeout time.Duration) error {
	select {
	case <-exited:
		return nil
	case <-time.After(timeout):
		return ErrKillFailed
	}
}
