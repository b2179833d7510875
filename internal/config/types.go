// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"path/filepath"
	"time"
)

// AppConfig is the complete service configuration.
type AppConfig struct {
	// Version is set from the binary, never from file or environment.
	Version string `yaml:"-"`

	ListenAddr string `yaml:"listenAddr"`
	DataDir    string `yaml:"dataDir"`
	// PublicBaseURL prefixes download links; empty yields relative links.
	PublicBaseURL  string `yaml:"publicBaseURL"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	LogLevel       string `yaml:"logLevel"`
	LogService     string `yaml:"logService"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type FFmpegConfig struct {
	Bin            string        `yaml:"bin"`
	KillTimeout    time.Duration `yaml:"killTimeout"`
	StallTimeout   time.Duration `yaml:"stallTimeout"`
	DefaultQuality int           `yaml:"defaultQuality"`
}

type CleanupConfig struct {
	OrphanMaxAge  time.Duration `yaml:"orphanMaxAge"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

type WebSocketConfig struct {
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	PingInterval time.Duration `yaml:"pingInterval"`
	SendBuffer   int           `yaml:"sendBuffer"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// UploadDir holds uploads until their job ends.
func (c AppConfig) UploadDir() string { return filepath.Join(c.DataDir, "uploads") }

// OutputDir holds converted files until they are downloaded.
func (c AppConfig) OutputDir() string { return filepath.Join(c.DataDir, "outputs") }

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:     ":3000",
		DataDir:        "data",
		MaxUploadBytes: 200 << 20,
		LogLevel:       "info",
		LogService:     "oggconv",
		FFmpeg: FFmpegConfig{
			Bin:            "ffmpeg",
			KillTimeout:    5 * time.Second,
			DefaultQuality: 4,
		},
		Cleanup: CleanupConfig{
			OrphanMaxAge:  time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
		},
		WebSocket: WebSocketConfig{
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			SendBuffer:   256,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
