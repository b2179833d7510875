// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by job and HTTP spans.
const (
	ClientIDKey = "client.id"

	JobIDKey       = "job.id"
	JobStateKey    = "job.state"
	JobDurationKey = "job.duration_ms"

	TranscodeModeKey     = "transcode.mode"
	TranscodeQualityKey  = "transcode.quality"
	TranscodeBitrateKey  = "transcode.bitrate"
	TranscodeExitCodeKey = "transcode.exit_code"
	TranscodePercentKey  = "transcode.percent"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// JobAttributes identifies a conversion job.
func JobAttributes(jobID, clientID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, jobID),
		attribute.String(ClientIDKey, clientID),
	}
}

// TranscodeAttributes describes the requested encoding. The bitrate is only
// recorded when set.
func TranscodeAttributes(mode string, quality int, bitrate string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(TranscodeModeKey, mode),
		attribute.Int(TranscodeQualityKey, quality),
	}
	if bitrate != "" {
		attrs = append(attrs, attribute.String(TranscodeBitrateKey, bitrate))
	}
	return attrs
}

// OutcomeAttributes records how a job ended.
func OutcomeAttributes(state string, exitCode, percent int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobStateKey, state),
		attribute.Int(TranscodeExitCodeKey, exitCode),
		attribute.Int(TranscodePercentKey, percent),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes flags a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
