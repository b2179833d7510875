// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cleanup deletes the temporary files of conversion jobs.
package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/ManuGH/oggconv/internal/jobs"
	"github.com/ManuGH/oggconv/internal/log"
	"github.com/ManuGH/oggconv/internal/metrics"
)

const (
	kindInput  = "input"
	kindOutput = "output"
	kindOrphan = "orphan"
)

// Coordinator removes job files on terminal transitions and tracks finished
// outputs until they are downloaded. Deletion failures are logged and
// counted, never returned.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]time.Time

	remove func(string) error
	now    func() time.Time
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		pending: make(map[string]time.Time),
		remove:  os.Remove,
		now:     time.Now,
	}
}

// OnJobTerminal deletes the job's input. The output is kept for download
// when the job completed and deleted otherwise.
func (c *Coordinator) OnJobTerminal(j jobs.Job) {
	c.delete(kindInput, j.InputPath)
	if j.State == jobs.StateCompleted {
		c.mu.Lock()
		c.pending[j.OutputPath] = c.now()
		c.mu.Unlock()
		return
	}
	c.delete(kindOutput, j.OutputPath)
}

// Release deletes a delivered output.
func (c *Coordinator) Release(path string) {
	c.mu.Lock()
	delete(c.pending, path)
	c.mu.Unlock()
	c.delete(kindOutput, path)
}

// Discard deletes an upload that never became a running job.
func (c *Coordinator) Discard(path string) {
	c.delete(kindInput, path)
}

// Claim hands a pending output to exactly one caller. It reports false when
// path is not a completed output or was already claimed. The claimer must
// call Release once done with the file.
func (c *Coordinator) Claim(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[path]; !ok {
		return false
	}
	delete(c.pending, path)
	return true
}

// IsPending reports whether path is a completed output awaiting download.
func (c *Coordinator) IsPending(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[path]
	return ok
}

// PendingCount returns the number of outputs awaiting download.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coordinator) forget(path string) {
	c.mu.Lock()
	delete(c.pending, path)
	c.mu.Unlock()
}

func (c *Coordinator) delete(kind, path string) bool {
	if path == "" {
		return false
	}
	err := c.remove(path)
	switch {
	case err == nil:
		metrics.IncCleanup(kind, "ok")
		logger := log.WithComponent("cleanup")
		logger.Debug().
			Str(log.FieldPath, path).
			Str("kind", kind).
			Str(log.FieldEvent, "cleanup.deleted").
			Msg("file deleted")
		return true
	case errors.Is(err, fs.ErrNotExist):
		metrics.IncCleanup(kind, "missing")
		return false
	default:
		metrics.IncCleanup(kind, "error")
		logger := log.WithComponent("cleanup")
		logger.Warn().Err(err).
			Str(log.FieldPath, path).
			Str("kind", kind).
			Str(log.FieldEvent, "cleanup.failed").
			Msg("could not delete file")
		return false
	}
}
