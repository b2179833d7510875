// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg wraps the external transcoder.
//
// It provides:
//   - Runner/Process: spawn ffmpeg in its own process group, stream its
//     stderr as lines, wait for the exit code and kill it idempotently
//   - Options/BuildArgs: turn client encoding options into a libvorbis
//     command line, falling back to quality mode on invalid input
//   - Parser: turn diagnostic lines into duration and progress updates
package ffmpeg
