// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/oggconv/internal/log"
	"github.com/ManuGH/oggconv/internal/metrics"
	"github.com/ManuGH/oggconv/internal/procgroup"
)

// ErrSpawn is returned when the transcoder executable cannot be launched.
var ErrSpawn = errors.New("spawn transcoder")

const (
	defaultKillTimeout = 5 * time.Second
	defaultTailLines   = 32
	maxLineBytes       = 1 << 20
)

// Runner launches transcoder processes.
type Runner struct {
	// KillTimeout is the grace period between SIGTERM and SIGKILL.
	KillTimeout time.Duration
	// TailLines is how many stderr lines each Process keeps for diagnostics.
	TailLines int
}

// NewRunner creates a Runner with the given SIGTERM grace period.
func NewRunner(killTimeout time.Duration) *Runner {
	if killTimeout <= 0 {
		killTimeout = defaultKillTimeout
	}
	return &Runner{KillTimeout: killTimeout, TailLines: defaultTailLines}
}

// Start spawns bin with args in a new process group. The returned Process
// streams stderr line by line; callers must drain Lines until it is closed.
// Cancelling ctx terminates the process.
func (r *Runner) Start(ctx context.Context, bin string, args []string) (*Process, error) {
	logger := log.WithComponentFromContext(ctx, "ffmpeg")

	cmd := exec.Command(bin, args...) // #nosec G204 -- args are built by BuildArgs
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		metrics.IncFFmpegStart("error")
		return nil, fmt.Errorf("%w: stderr pipe: %w", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		metrics.IncFFmpegStart("error")
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, bin, err)
	}
	metrics.IncFFmpegStart("ok")

	p := &Process{
		cmd:         cmd,
		lines:       make(chan string, 64),
		exited:      make(chan struct{}),
		drained:     make(chan struct{}),
		abandon:     make(chan struct{}),
		ring:        NewLineRing(r.TailLines),
		killTimeout: r.KillTimeout,
		started:     time.Now(),
	}

	logger.Debug().
		Int(log.FieldPID, cmd.Process.Pid).
		Str("command", cmd.String()).
		Msg("transcoder started")

	go p.readLines(stderr)
	go p.reap()
	go func() {
		select {
		case <-ctx.Done():
			p.stopForwarding()
			_ = p.Kill()
		case <-p.exited:
		}
	}()

	return p, nil
}

// Process is a running transcoder.
type Process struct {
	cmd         *exec.Cmd
	lines       chan string
	exited      chan struct{}
	drained     chan struct{}
	abandon     chan struct{}
	abandonOnce sync.Once
	ring        *LineRing
	killTimeout time.Duration
	started     time.Time
	killed      atomic.Bool

	code    int
	waitErr error
}

// Lines returns the diagnostic line stream. It is closed once stderr reaches EOF.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the process has exited and returns its exit code.
// The error is non-nil for any non-zero exit. Safe for concurrent use.
func (p *Process) Wait() (int, error) {
	<-p.exited
	return p.code, p.waitErr
}

// Kill terminates the process group. It is a no-op once the process has exited.
func (p *Process) Kill() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	if p.killed.Swap(true) {
		return nil
	}
	return procgroup.Terminate(p.cmd, p.exited, p.killTimeout)
}

// Tail returns the last n stderr lines.
func (p *Process) Tail(n int) []string {
	return p.ring.LastN(n)
}

func (p *Process) stopForwarding() {
	p.abandonOnce.Do(func() { close(p.abandon) })
}

func (p *Process) readLines(stderr io.Reader) {
	defer close(p.drained)
	defer close(p.lines)

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(ScanDiagnosticLines)

	forward := true
	for scanner.Scan() {
		line := scanner.Text()
		p.ring.Add(line)
		if !forward {
			continue
		}
		select {
		case p.lines <- line:
		case <-p.abandon:
			forward = false
		}
	}
	if err := scanner.Err(); err != nil {
		logger := log.WithComponent("ffmpeg")
		logger.Warn().Err(err).Int(log.FieldPID, p.Pid()).Msg("stderr scan aborted, discarding rest")
		// Keep the pipe drained so the child never blocks on a full stderr.
		_, _ = io.Copy(io.Discard, stderr)
	}
}

func (p *Process) reap() {
	// exec.Cmd.Wait must not run before all reads from the pipe are done.
	<-p.drained
	err := p.cmd.Wait()

	code := 0
	reason := "clean"
	if err != nil {
		code = -1
		reason = "error"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if p.killed.Load() {
			reason = "killed"
		}
	}
	p.code = code
	p.waitErr = err
	metrics.IncFFmpegExit(reason)

	logger := log.WithComponent("ffmpeg")
	logger.Debug().
		Int(log.FieldPID, p.cmd.Process.Pid).
		Int(log.FieldExitCode, code).
		Str("reason", reason).
		Dur("uptime", time.Since(p.started)).
		Msg("transcoder exited")

	close(p.exited)
}

// ScanDiagnosticLines is a bufio.SplitFunc that splits on '\n' or '\r'.
// ffmpeg redraws its status line with bare carriage returns, so splitting on
// newlines alone would deliver progress only when the process ends.
// Empty tokens (e.g. between "\r\n") are skipped.
func ScanDiagnosticLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && (data[start] == '\n' || data[start] == '\r') {
		start++
	}
	if atEOF && start == len(data) {
		return len(data), nil, nil
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF {
		return len(data), data[start:], nil
	}
	// Request more data, but consume the separators already skipped.
	return start, nil, nil
}
