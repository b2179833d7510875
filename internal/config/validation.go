// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/rs/zerolog"

	"github.com/ManuGH/oggconv/internal/ffmpeg"
	"github.com/ManuGH/oggconv/internal/validate"
)

// Validate reports every invalid field at once. It creates DataDir if needed.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("listenAddr", cfg.ListenAddr)
	v.Directory("dataDir", cfg.DataDir)
	v.URL("publicBaseURL", cfg.PublicBaseURL, []string{"http", "https"})
	v.Positive("maxUploadBytes", cfg.MaxUploadBytes)
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		v.AddError("logLevel", "unknown log level", cfg.LogLevel)
	}

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.MinDuration("ffmpeg.killTimeout", cfg.FFmpeg.KillTimeout, 0)
	v.MinDuration("ffmpeg.stallTimeout", cfg.FFmpeg.StallTimeout, 0)
	v.Range("ffmpeg.defaultQuality", cfg.FFmpeg.DefaultQuality, ffmpeg.MinQuality, ffmpeg.MaxQuality)

	v.MinDuration("cleanup.orphanMaxAge", cfg.Cleanup.OrphanMaxAge, 0)
	v.MinDuration("cleanup.sweepInterval", cfg.Cleanup.SweepInterval, 0)

	if cfg.RateLimit.Enabled {
		v.Positive("rateLimit.requestsPerMinute", int64(cfg.RateLimit.RequestsPerMinute))
	}

	v.MinDuration("websocket.writeTimeout", cfg.WebSocket.WriteTimeout, 0)
	v.MinDuration("websocket.pingInterval", cfg.WebSocket.PingInterval, 0)
	if cfg.WebSocket.SendBuffer < 0 {
		v.AddError("websocket.sendBuffer", "value cannot be negative", cfg.WebSocket.SendBuffer)
	}

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
	}
	v.FloatRange("tracing.samplingRate", cfg.Tracing.SamplingRate, 0, 1)

	return v.Err()
}
