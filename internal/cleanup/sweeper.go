// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/oggconv/internal/jobs"
	"github.com/ManuGH/oggconv/internal/log"
)

// SweeperConfig controls the orphan sweep.
type SweeperConfig struct {
	Dirs     []string
	MaxAge   time.Duration // 0 disables sweeping
	Interval time.Duration
}

// Sweeper periodically deletes files older than MaxAge that no running job
// owns. It bounds disk usage when outputs are never downloaded or a crash
// left uploads behind.
type Sweeper struct {
	cfg    SweeperConfig
	coord  *Coordinator
	active func() []jobs.Job
	now    func() time.Time
}

// NewSweeper creates a sweeper. active lists jobs whose files must be kept.
func NewSweeper(cfg SweeperConfig, coord *Coordinator, active func() []jobs.Job) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if active == nil {
		active = func() []jobs.Job { return nil }
	}
	return &Sweeper{cfg: cfg, coord: coord, active: active, now: time.Now}
}

// Enabled reports whether sweeping is configured.
func (s *Sweeper) Enabled() bool {
	return s.cfg.MaxAge > 0 && len(s.cfg.Dirs) > 0
}

// Run sweeps once immediately and then every Interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.Enabled() {
		<-ctx.Done()
		return nil
	}

	s.SweepOnce()
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce deletes stale files and returns how many were removed.
func (s *Sweeper) SweepOnce() int {
	if !s.Enabled() {
		return 0
	}

	keep := make(map[string]struct{})
	for _, j := range s.active() {
		keep[filepath.Clean(j.InputPath)] = struct{}{}
		keep[filepath.Clean(j.OutputPath)] = struct{}{}
	}

	logger := log.WithComponent("cleanup")
	cutoff := s.now().Add(-s.cfg.MaxAge)
	removed := 0
	for _, dir := range s.cfg.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn().Err(err).Str(log.FieldPath, dir).Msg("sweep: read dir")
			continue
		}
		for _, de := range entries {
			if !de.Type().IsRegular() {
				continue
			}
			path := filepath.Join(dir, de.Name())
			if _, ok := keep[path]; ok {
				continue
			}
			info, err := de.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if s.coord.delete(kindOrphan, path) {
				s.coord.forget(path)
				removed++
			}
		}
	}
	if removed > 0 {
		logger.Info().
			Int("removed", removed).
			Str(log.FieldEvent, "cleanup.swept").
			Msg("orphaned files removed")
	}
	return removed
}
