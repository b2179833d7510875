// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/oggconv/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Listener is called with the new configuration after a successful reload.
type Listener func(old, current AppConfig)

// Holder keeps the active configuration and swaps it atomically on reload.
// A failed reload leaves the previous configuration in place.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []Listener

	debounce time.Duration
}

func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   log.WithComponent("config"),
		debounce: defaultDebounce,
	}
}

func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn. Listeners run synchronously in registration order.
func (h *Holder) OnReload(fn Listener) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload re-reads every source. Fields that cannot change at runtime
// (listen address, data directory) keep their old values.
func (h *Holder) Reload() error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	next.ListenAddr = old.ListenAddr
	next.DataDir = old.DataDir
	h.current = next
	h.mu.Unlock()

	h.logChanges(old, next)

	h.listenersMu.RLock()
	listeners := slices.Clone(h.listeners)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(old, next)
	}

	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch reloads whenever the config file changes, debouncing bursts of
// events. It blocks until ctx is done. Without a config file it only waits.
//
// The parent directory is watched so editors that replace the file by
// rename are still noticed.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str(log.FieldEvent, "config.watcher_disabled").Msg("no config file, watcher disabled")
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str(log.FieldEvent, "config.watcher_started").Str(log.FieldPath, abs).Msg("watching config file")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str(log.FieldEvent, "config.file_changed").Str("op", ev.Op.String()).Msg("config file changed")
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			// Errors are logged by Reload; keep watching.
			_ = h.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Str(log.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

func (h *Holder) logChanges(old, next AppConfig) {
	if old.LogLevel != next.LogLevel {
		h.changed("logLevel").Str("old", old.LogLevel).Str("new", next.LogLevel).Msg("config changed")
	}
	if old.PublicBaseURL != next.PublicBaseURL {
		h.changed("publicBaseURL").Str("old", old.PublicBaseURL).Str("new", next.PublicBaseURL).Msg("config changed")
	}
	if old.MaxUploadBytes != next.MaxUploadBytes {
		h.changed("maxUploadBytes").Int64("old", old.MaxUploadBytes).Int64("new", next.MaxUploadBytes).Msg("config changed")
	}
	if old.FFmpeg.DefaultQuality != next.FFmpeg.DefaultQuality {
		h.changed("ffmpeg.defaultQuality").Int("old", old.FFmpeg.DefaultQuality).Int("new", next.FFmpeg.DefaultQuality).Msg("config changed")
	}
	if old.FFmpeg.StallTimeout != next.FFmpeg.StallTimeout {
		h.changed("ffmpeg.stallTimeout").Dur("old", old.FFmpeg.StallTimeout).Dur("new", next.FFmpeg.StallTimeout).Msg("config changed")
	}
	if old.Cleanup.OrphanMaxAge != next.Cleanup.OrphanMaxAge {
		h.changed("cleanup.orphanMaxAge").Dur("old", old.Cleanup.OrphanMaxAge).Dur("new", next.Cleanup.OrphanMaxAge).Msg("config changed")
	}
}

func (h *Holder) changed(field string) *zerolog.Event {
	return h.logger.Info().Str(log.FieldEvent, "config.changed").Str("field", field)
}
