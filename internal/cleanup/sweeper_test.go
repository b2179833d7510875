// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/oggconv/internal/jobs"
)

func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepOnce(t *testing.T) {
	uploads, outputs := t.TempDir(), t.TempDir()

	stale := touch(t, filepath.Join(uploads, "stale"))
	fresh := touch(t, filepath.Join(uploads, "fresh"))
	busy := touch(t, filepath.Join(uploads, "busy"))
	undelivered := touch(t, filepath.Join(outputs, "done.ogg"))
	require.NoError(t, os.Mkdir(filepath.Join(outputs, "subdir"), 0o700))

	age(t, stale, 2*time.Hour)
	age(t, busy, 2*time.Hour)
	age(t, undelivered, 2*time.Hour)

	c := NewCoordinator()
	c.OnJobTerminal(jobs.Job{OutputPath: undelivered, State: jobs.StateCompleted})
	require.True(t, c.IsPending(undelivered))

	s := NewSweeper(SweeperConfig{Dirs: []string{uploads, outputs}, MaxAge: time.Hour}, c, func() []jobs.Job {
		return []jobs.Job{{InputPath: busy, OutputPath: filepath.Join(outputs, "busy.ogg")}}
	})

	assert.Equal(t, 2, s.SweepOnce())
	assert.False(t, exists(stale))
	assert.False(t, exists(undelivered))
	assert.False(t, c.IsPending(undelivered))
	assert.True(t, exists(fresh))
	assert.True(t, exists(busy), "files of running jobs are kept")
	assert.DirExists(t, filepath.Join(outputs, "subdir"))
}

func TestSweeper_Disabled(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	f := touch(t, filepath.Join(dir, "old"))
	age(t, f, 48*time.Hour)

	s := NewSweeper(SweeperConfig{Dirs: []string{dir}}, NewCoordinator(), nil)
	assert.False(t, s.Enabled())
	assert.Equal(t, 0, s.SweepOnce())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-errCh)
	assert.True(t, exists(f))
}

func TestSweeper_RunSweepsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	f := touch(t, filepath.Join(dir, "old"))
	age(t, f, 2*time.Minute)

	s := NewSweeper(SweeperConfig{Dirs: []string{dir}, MaxAge: time.Minute, Interval: time.Hour}, NewCoordinator(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return !exists(f) }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)
}

func TestSweeper_MissingDirIsLogged(t *testing.T) {
	s := NewSweeper(SweeperConfig{Dirs: []string{filepath.Join(t.TempDir(), "nope")}, MaxAge: time.Minute}, NewCoordinator(), nil)
	assert.Equal(t, 0, s.SweepOnce())
}
