// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cleanup

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/oggconv/internal/jobs"
	"github.com/ManuGH/oggconv/internal/log"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestOnJobTerminal(t *testing.T) {
	tests := []struct {
		state      jobs.State
		keepOutput bool
	}{
		{jobs.StateCompleted, true},
		{jobs.StateFailed, false},
		{jobs.StateCancelled, false},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			dir := t.TempDir()
			in := touch(t, filepath.Join(dir, "in"))
			out := touch(t, filepath.Join(dir, "in.ogg"))

			c := NewCoordinator()
			c.OnJobTerminal(jobs.Job{InputPath: in, OutputPath: out, State: tt.state})

			assert.False(t, exists(in), "input is always deleted")
			assert.Equal(t, tt.keepOutput, exists(out))
			assert.Equal(t, tt.keepOutput, c.IsPending(out))
		})
	}
}

func TestRelease(t *testing.T) {
	dir := t.TempDir()
	out := touch(t, filepath.Join(dir, "a.ogg"))

	c := NewCoordinator()
	c.OnJobTerminal(jobs.Job{InputPath: filepath.Join(dir, "gone"), OutputPath: out, State: jobs.StateCompleted})
	require.Equal(t, 1, c.PendingCount())

	c.Release(out)
	assert.False(t, exists(out))
	assert.Equal(t, 0, c.PendingCount())

	// Releasing twice is harmless.
	c.Release(out)
}

func TestDiscard(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, filepath.Join(dir, "upload"))

	c := NewCoordinator()
	c.Discard(in)
	c.Discard("")
	assert.False(t, exists(in))
}

func TestDeleteFailureIsSwallowed(t *testing.T) {
	c := NewCoordinator()
	var removed []string
	c.remove = func(p string) error {
		removed = append(removed, p)
		return errors.New("permission denied")
	}

	assert.NotPanics(t, func() {
		c.OnJobTerminal(jobs.Job{InputPath: "/in", OutputPath: "/out", State: jobs.StateFailed})
	})
	assert.Equal(t, []string{"/in", "/out"}, removed)
}

func TestDeleteOutcomesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log.Configure(log.Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { log.Configure(log.Config{Level: "info"}) })

	dir := t.TempDir()
	c := NewCoordinator()
	c.Discard(touch(t, filepath.Join(dir, "upload")))

	c.remove = func(string) error { return errors.New("permission denied") }
	c.Discard("/locked")

	var got []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["component"] == "cleanup" {
			got = append(got, entry)
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, "cleanup.deleted", got[0][log.FieldEvent])
	assert.Equal(t, "debug", got[0]["level"])
	assert.Equal(t, "cleanup.failed", got[1][log.FieldEvent])
	assert.Equal(t, "warn", got[1]["level"])
	assert.Equal(t, "/locked", got[1][log.FieldPath])
}

func TestClaimIsExclusive(t *testing.T) {
	dir := t.TempDir()
	out := touch(t, filepath.Join(dir, "a.ogg"))

	c := NewCoordinator()
	assert.False(t, c.Claim(out), "running outputs cannot be claimed")

	c.OnJobTerminal(jobs.Job{OutputPath: out, State: jobs.StateCompleted})
	require.True(t, c.Claim(out))
	assert.False(t, c.Claim(out), "second claim must fail")
	assert.True(t, exists(out), "claim does not delete")

	c.Release(out)
	assert.False(t, exists(out))
}
