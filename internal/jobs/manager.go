// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/ffmpeg"
	"github.com/ManuGH/oggconv/internal/ffmpeg/watchdog"
	"github.com/ManuGH/oggconv/internal/log"
	"github.com/ManuGH/oggconv/internal/metrics"
	"github.com/ManuGH/oggconv/internal/telemetry"
)

const tracerName = "github.com/ManuGH/oggconv/internal/jobs"

// tailOnFailure is how many stderr lines are logged when a job fails.
const tailOnFailure = 8

// Config holds the manager settings.
type Config struct {
	FFmpegBin string
	OutputDir string
	// DefaultQuality applies to requests without a valid quality. It is used
	// as given, so 0 means quality 0; the config layer defaults it to 4.
	DefaultQuality int
	// StallTimeout kills a job whose encoded position stops advancing.
	// Zero disables the watchdog.
	StallTimeout time.Duration
	// DownloadURL builds the link carried by the done event.
	DownloadURL func(outputPath, displayName string) string
}

// DefaultDownloadURL renders "/download/<file>?name=<displayName>".
func DefaultDownloadURL(outputPath, displayName string) string {
	return "/download/" + url.PathEscape(filepath.Base(outputPath)) + "?name=" + url.QueryEscape(displayName)
}

type entry struct {
	job       Job
	proc      Process
	cancel    context.CancelFunc
	cancelled bool
}

// Manager runs at most one conversion per client.
type Manager struct {
	cfg      Config
	runner   ProcessRunner
	clients  ClientDirectory
	notifier Notifier
	cleaner  Cleaner

	defaultQuality atomic.Int64

	mu      sync.Mutex
	jobs    map[string]*entry
	closing bool
	wg      sync.WaitGroup

	newID func() string
	now   func() time.Time
}

// NewManager wires a manager. All collaborators are required.
func NewManager(cfg Config, runner ProcessRunner, clients ClientDirectory, notifier Notifier, cleaner Cleaner) *Manager {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.DownloadURL == nil {
		cfg.DownloadURL = DefaultDownloadURL
	}
	m := &Manager{
		cfg:      cfg,
		runner:   runner,
		clients:  clients,
		notifier: notifier,
		cleaner:  cleaner,
		jobs:     make(map[string]*entry),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	m.SetDefaultQuality(cfg.DefaultQuality)
	return m
}

// SetDefaultQuality changes the quality used when a request has none.
// Out-of-range values fall back to ffmpeg.DefaultQuality.
func (m *Manager) SetDefaultQuality(q int) {
	if q < ffmpeg.MinQuality || q > ffmpeg.MaxQuality {
		q = ffmpeg.DefaultQuality
	}
	m.defaultQuality.Store(int64(q))
}

// Start launches a conversion for req.ClientID. The manager owns
// req.InputPath from this point on: it is deleted on every rejection path
// and after the job ends.
//
// The job outlives ctx; only its values (request id, trace) are inherited.
func (m *Manager) Start(ctx context.Context, req Request) error {
	logger := log.WithComponentFromContext(ctx, "jobs").With().
		Str(log.FieldClientID, req.ClientID).
		Str(log.FieldInputPath, req.InputPath).
		Logger()

	reject := func(result string, err error) error {
		m.cleaner.Discard(req.InputPath)
		metrics.IncJobStart(result)
		logger.Info().Err(err).
			Str(log.FieldEvent, "job.rejected").
			Str("reason", result).
			Msg("conversion rejected")
		return err
	}

	if !m.clients.Has(req.ClientID) {
		return reject("unknown_client", fmt.Errorf("%w: %q", ErrUnknownClient, req.ClientID))
	}

	outputPath := ffmpeg.OutputPathFor(m.cfg.OutputDir, req.InputPath)
	displayName := req.DisplayName
	if displayName == "" {
		displayName = filepath.Base(outputPath)
	}

	e := &entry{job: Job{
		ID:          m.newID(),
		ClientID:    req.ClientID,
		InputPath:   req.InputPath,
		OutputPath:  outputPath,
		DisplayName: displayName,
		State:       StatePending,
		StartedAt:   m.now(),
	}}

	jobCtx := log.ContextWithJobID(log.ContextWithClientID(context.WithoutCancel(ctx), req.ClientID), e.job.ID)
	jobCtx, e.cancel = context.WithCancel(jobCtx)

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		e.cancel()
		return reject("shutting_down", ErrShuttingDown)
	}
	if _, busy := m.jobs[req.ClientID]; busy {
		m.mu.Unlock()
		e.cancel()
		return reject("already_running", fmt.Errorf("%w: %q", ErrJobAlreadyRunning, req.ClientID))
	}
	m.jobs[req.ClientID] = e
	m.wg.Add(1)
	m.mu.Unlock()

	abort := func() {
		e.cancel()
		m.mu.Lock()
		if m.jobs[req.ClientID] == e {
			delete(m.jobs, req.ClientID)
		}
		m.mu.Unlock()
		m.wg.Done()
	}

	enc := req.Options.Normalize(int(m.defaultQuality.Load()))
	args, err := ffmpeg.BuildArgs(req.InputPath, outputPath, enc)
	if err != nil {
		abort()
		return reject("invalid_args", fmt.Errorf("%w: %w", ErrArgumentBuild, err))
	}

	jobCtx, span := telemetry.Tracer(tracerName).Start(jobCtx, "jobs.run",
		trace.WithAttributes(telemetry.JobAttributes(e.job.ID, req.ClientID)...),
		trace.WithAttributes(telemetry.TranscodeAttributes(enc.Mode, enc.Quality, enc.Bitrate)...),
	)

	proc, err := m.runner.Start(jobCtx, m.cfg.FFmpegBin, args)
	if err != nil {
		abort()
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes("spawn")...)
		span.SetStatus(codes.Error, "spawn failed")
		span.End()
		m.notifier.Dispatch(req.ClientID, events.Error("failed to start transcoder"))
		return reject("spawn_error", fmt.Errorf("%w: %w", ErrSpawn, err))
	}

	m.mu.Lock()
	e.proc = proc
	cancelled := e.cancelled
	if !cancelled {
		e.job.State = StateRunning
	}
	m.mu.Unlock()
	if cancelled {
		// The client left while the process was being spawned.
		_ = proc.Kill()
	}

	metrics.IncJobStart("ok")
	metrics.JobRunning(1)
	logger.Info().
		Str(log.FieldJobID, e.job.ID).
		Str(log.FieldEvent, "job.started").
		Str(log.FieldOutputPath, outputPath).
		Str("mode", enc.Mode).
		Msg("conversion started")

	go m.supervise(jobCtx, span, e, proc)
	return nil
}

// supervise forwards the job's output to its client until the process exits,
// then classifies the outcome, schedules cleanup and sends the final event.
func (m *Manager) supervise(ctx context.Context, span trace.Span, e *entry, proc Process) {
	defer m.wg.Done()
	defer e.cancel()

	clientID := e.job.ClientID
	logger := log.WithComponentFromContext(ctx, "jobs")

	var stalled atomic.Bool
	wd, stopWatchdog := m.watch(ctx, proc, &stalled)

	parser := ffmpeg.NewParser()
	for line := range proc.Lines() {
		updates := parser.Feed(line)
		if wd != nil {
			wd.Observe(parser.Elapsed())
		}

		m.mu.Lock()
		silent := e.cancelled
		e.job.TotalSeconds = parser.Total()
		e.job.Percent = parser.Percent()
		m.mu.Unlock()
		if silent {
			continue
		}

		for _, u := range updates {
			m.notifier.DispatchUpdate(clientID, u)
		}
	}

	code, waitErr := proc.Wait()
	stopWatchdog()

	m.mu.Lock()
	state := StateFailed
	switch {
	case e.cancelled:
		state = StateCancelled
	case code == 0 && waitErr == nil:
		state = StateCompleted
	}
	if m.jobs[clientID] == e {
		delete(m.jobs, clientID)
	}
	e.job.State = state
	e.job.ExitCode = code
	e.job.Stalled = stalled.Load()
	snapshot := e.job
	m.mu.Unlock()

	m.cleaner.OnJobTerminal(snapshot)

	elapsed := m.now().Sub(snapshot.StartedAt)
	switch state {
	case StateCompleted:
		link := m.cfg.DownloadURL(snapshot.OutputPath, snapshot.DisplayName)
		if !m.notifier.Dispatch(clientID, events.Done(link)) {
			// Nobody is left to download it.
			m.cleaner.Release(snapshot.OutputPath)
		}
	case StateFailed:
		msg := m.failureMessage(snapshot)
		m.notifier.Dispatch(clientID, events.Error(msg))
		span.SetStatus(codes.Error, msg)
	}

	metrics.JobRunning(-1)
	metrics.ObserveJobFinished(state.String(), elapsed)
	span.SetAttributes(telemetry.OutcomeAttributes(state.String(), code, snapshot.Percent, elapsed.Milliseconds())...)
	span.End()

	ev := logger.Info()
	if state == StateFailed {
		ev = logger.Warn().Err(waitErr)
		if t, ok := proc.(interface{ Tail(int) []string }); ok {
			ev = ev.Strs("stderr_tail", t.Tail(tailOnFailure))
		}
	}
	ev.Str(log.FieldEvent, "job."+state.String()).
		Int(log.FieldExitCode, code).
		Int("percent", snapshot.Percent).
		Bool("stalled", snapshot.Stalled).
		Dur("elapsed", elapsed).
		Msg("conversion finished")
}

// watch starts the stall watchdog when enabled. The returned stop function
// waits for the watchdog goroutine to exit.
func (m *Manager) watch(ctx context.Context, proc Process, stalled *atomic.Bool) (*watchdog.Watchdog, func()) {
	if m.cfg.StallTimeout <= 0 {
		return nil, func() {}
	}

	wd := watchdog.New(m.cfg.StallTimeout)
	wdCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := wd.Run(wdCtx); errors.Is(err, watchdog.ErrStalled) {
			stalled.Store(true)
			logger := log.WithComponentFromContext(ctx, "jobs")
			logger.Warn().
				Str(log.FieldEvent, "job.stalled").
				Dur("stall_timeout", m.cfg.StallTimeout).
				Msg("no progress, killing transcoder")
			_ = proc.Kill()
		}
	}()
	return wd, func() {
		wd.Stop()
		cancel()
		<-done
	}
}

func (m *Manager) failureMessage(j Job) string {
	if j.Stalled {
		return fmt.Sprintf("transcoder stalled: no progress for %s", m.cfg.StallTimeout)
	}
	return fmt.Sprintf("transcoder exited with code %d", j.ExitCode)
}

// CancelForClient kills the client's job, if any, and removes it from the
// table at once. The job ends as Cancelled and sends no further events.
// It reports whether a job was found.
func (m *Manager) CancelForClient(clientID string) bool {
	m.mu.Lock()
	e, ok := m.jobs[clientID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.jobs, clientID)
	e.cancelled = true
	e.job.State = StateCancelled
	proc := e.proc
	jobID := e.job.ID
	m.mu.Unlock()

	e.cancel()
	logger := log.WithComponent("jobs")
	if proc != nil {
		if err := proc.Kill(); err != nil {
			logger.Warn().Err(err).Str(log.FieldJobID, jobID).Msg("kill transcoder")
		}
	}
	logger.Info().
		Str(log.FieldClientID, clientID).
		Str(log.FieldJobID, jobID).
		Str(log.FieldEvent, "job.cancel_requested").
		Msg("conversion cancelled")
	return true
}

// Shutdown refuses new jobs, cancels running ones and waits for their
// supervisors to finish or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.CancelForClient(id)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for jobs: %w", ctx.Err())
	}
}

// Active returns snapshots of all jobs in the table, oldest first.
func (m *Manager) Active() []Job {
	m.mu.Lock()
	out := make([]Job, 0, len(m.jobs))
	for _, e := range m.jobs {
		out = append(out, e.job)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ClientID < out[j].ClientID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Lookup returns a snapshot of the client's job.
func (m *Manager) Lookup(clientID string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[clientID]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}
