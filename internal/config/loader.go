// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField is wrapped when the YAML file names a key that does
// not exist.
var ErrUnknownConfigField = errors.New("unknown configuration field")

const envPrefix = "OGGCONV_"

// Loader builds an AppConfig. Precedence: ENV > file > defaults.
type Loader struct {
	path    string
	version string
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Path returns the config file path, which may be empty.
func (l *Loader) Path() string { return l.path }

// Load merges all sources, makes DataDir absolute and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.path != "" {
		if err := l.mergeFile(&cfg); err != nil {
			return AppConfig{}, err
		}
	}
	mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *AppConfig) error {
	ext := strings.ToLower(filepath.Ext(l.path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format %q (want .yaml or .yml)", ext)
	}
	data, err := os.ReadFile(l.path) // #nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("read config %s: %w", l.path, err)
	}
	return decodeStrict(data, cfg)
}

// decodeStrict decodes a single YAML document onto cfg, rejecting unknown
// keys and trailing documents. Keys absent from the file keep their values.
func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("parse config: multiple YAML documents are not supported")
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	if port := ParseString("PORT", ""); port != "" {
		cfg.ListenAddr = ":" + port
	}
	cfg.ListenAddr = ParseString(envPrefix+"LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDir = ParseString(envPrefix+"DATA_DIR", cfg.DataDir)
	cfg.PublicBaseURL = ParseString(envPrefix+"PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.MaxUploadBytes = ParseInt64(envPrefix+"MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.LogLevel = ParseString(envPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString(envPrefix+"LOG_SERVICE", cfg.LogService)

	cfg.FFmpeg.Bin = ParseString(envPrefix+"FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.KillTimeout = ParseDuration(envPrefix+"FFMPEG_KILL_TIMEOUT", cfg.FFmpeg.KillTimeout)
	cfg.FFmpeg.StallTimeout = ParseDuration(envPrefix+"FFMPEG_STALL_TIMEOUT", cfg.FFmpeg.StallTimeout)
	cfg.FFmpeg.DefaultQuality = ParseInt(envPrefix+"FFMPEG_DEFAULT_QUALITY", cfg.FFmpeg.DefaultQuality)

	cfg.Cleanup.OrphanMaxAge = ParseDuration(envPrefix+"CLEANUP_ORPHAN_MAX_AGE", cfg.Cleanup.OrphanMaxAge)
	cfg.Cleanup.SweepInterval = ParseDuration(envPrefix+"CLEANUP_SWEEP_INTERVAL", cfg.Cleanup.SweepInterval)

	cfg.CORS.AllowedOrigins = ParseList(envPrefix+"CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
	cfg.RateLimit.Enabled = ParseBool(envPrefix+"RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = ParseInt(envPrefix+"RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMinute)

	cfg.WebSocket.WriteTimeout = ParseDuration(envPrefix+"WS_WRITE_TIMEOUT", cfg.WebSocket.WriteTimeout)
	cfg.WebSocket.PingInterval = ParseDuration(envPrefix+"WS_PING_INTERVAL", cfg.WebSocket.PingInterval)
	cfg.WebSocket.SendBuffer = ParseInt(envPrefix+"WS_SEND_BUFFER", cfg.WebSocket.SendBuffer)

	cfg.Tracing.Enabled = ParseBool(envPrefix+"TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = ParseString(envPrefix+"TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = ParseString(envPrefix+"TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = ParseFloat(envPrefix+"TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
}
