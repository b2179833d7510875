// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuGH/oggconv/internal/api"
	"github.com/ManuGH/oggconv/internal/cleanup"
	"github.com/ManuGH/oggconv/internal/clients"
	"github.com/ManuGH/oggconv/internal/config"
	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/ffmpeg"
	"github.com/ManuGH/oggconv/internal/health"
	"github.com/ManuGH/oggconv/internal/jobs"
	"github.com/ManuGH/oggconv/internal/log"
	"github.com/ManuGH/oggconv/internal/storage"
	"github.com/ManuGH/oggconv/internal/telemetry"
)

// components is everything New wires together.
type components struct {
	tracer   *telemetry.Provider
	store    *storage.Store
	registry *clients.Registry
	coord    *cleanup.Coordinator
	manager  *jobs.Manager
	sweeper  *cleanup.Sweeper
	api      *api.Server
}

// bootstrap constructs the object graph for cfg. runner overrides the
// ffmpeg process runner when non-nil.
func bootstrap(ctx context.Context, holder *config.Holder, runner jobs.ProcessRunner) (*components, error) {
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	store, err := storage.New(cfg.UploadDir(), cfg.OutputDir())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	checks := health.NewManager(cfg.Version)
	checks.Register(health.WritableDir("uploads", store.UploadDir()))
	checks.Register(health.WritableDir("outputs", store.OutputDir()))
	if runner == nil {
		checks.Register(health.Executable("ffmpeg", func() string { return holder.Get().FFmpeg.Bin }))
		runner = jobs.NewFFmpegRunner(ffmpeg.NewRunner(cfg.FFmpeg.KillTimeout))
	}
	if ready := checks.Ready(ctx); !ready.Ready {
		// Startup continues; /readyz keeps reporting the failure.
		for name, res := range ready.Checks {
			if res.Status == health.StatusUnhealthy {
				logger.Warn().
					Str(log.FieldEvent, "preflight.failed").
					Str("check", name).
					Str("error", res.Error).
					Msg("startup check failed")
			}
		}
	}

	registry := clients.NewRegistry()
	dispatcher := events.NewDispatcher(registry)
	coord := cleanup.NewCoordinator()

	manager := jobs.NewManager(jobs.Config{
		FFmpegBin:      cfg.FFmpeg.Bin,
		OutputDir:      store.OutputDir(),
		DefaultQuality: cfg.FFmpeg.DefaultQuality,
		StallTimeout:   cfg.FFmpeg.StallTimeout,
		DownloadURL: func(outputPath, displayName string) string {
			base := strings.TrimRight(holder.Get().PublicBaseURL, "/")
			return base + jobs.DefaultDownloadURL(outputPath, displayName)
		},
	}, runner, registry, dispatcher, coord)
	registry.OnDisconnect(func(clientID string) { manager.CancelForClient(clientID) })

	sweeper := cleanup.NewSweeper(cleanup.SweeperConfig{
		Dirs:     []string{store.UploadDir(), store.OutputDir()},
		MaxAge:   cfg.Cleanup.OrphanMaxAge,
		Interval: cfg.Cleanup.SweepInterval,
	}, coord, manager.Active)

	tracingService := ""
	if cfg.Tracing.Enabled {
		tracingService = cfg.LogService
	}
	server := api.New(api.Config{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitRPM:     cfg.RateLimit.RequestsPerMinute,
		WebSocket: clients.WSConfig{
			WriteTimeout: cfg.WebSocket.WriteTimeout,
			PingInterval: cfg.WebSocket.PingInterval,
			SendBuffer:   cfg.WebSocket.SendBuffer,
		},
		TracingService: tracingService,
		Version:        cfg.Version,
	}, api.Deps{
		Jobs:       manager,
		Clients:    registry,
		Dispatcher: dispatcher,
		Store:      store,
		Outputs:    coord,
		Health:     checks,
	})

	holder.OnReload(func(old, cur config.AppConfig) {
		if old.LogLevel != cur.LogLevel {
			if err := log.SetLevel(cur.LogLevel); err != nil {
				logger.Warn().Err(err).Msg("ignoring invalid log level")
			}
		}
		manager.SetDefaultQuality(cur.FFmpeg.DefaultQuality)
		server.SetMaxUploadBytes(cur.MaxUploadBytes)
	})

	return &components{
		tracer:   tracer,
		store:    store,
		registry: registry,
		coord:    coord,
		manager:  manager,
		sweeper:  sweeper,
		api:      server,
	}, nil
}
