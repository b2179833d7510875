// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	ModeQuality = "quality"
	ModeBitrate = "bitrate"

	DefaultQuality = 4
	MinQuality     = -1
	MaxQuality     = 10

	AudioCodec = "libvorbis"
	OutputExt  = ".ogg"
)

// ErrInvalidArgs is returned when no valid command line can be built.
var ErrInvalidArgs = errors.New("invalid transcoder arguments")

var bitratePattern = regexp.MustCompile(`^\d+k$`)

// Options is the client-supplied encoding request. Every field is optional;
// invalid values are replaced by defaults in Normalize rather than rejected.
type Options struct {
	BitrateMode string `json:"bitrateMode,omitempty"`
	Quality     *int   `json:"quality,omitempty"`
	Bitrate     string `json:"bitrate,omitempty"`
	SampleRate  int    `json:"sampleRate,omitempty"`
	Channels    string `json:"channels,omitempty"`
}

// Encoding is a validated set of encoder settings.
type Encoding struct {
	Mode       string
	Quality    int
	Bitrate    string
	SampleRate int // 0 leaves the source rate
	Channels   int // 0 leaves the source layout
}

// ParseOptions reads options from form or query values. Unparseable numbers
// are treated as absent.
func ParseOptions(v url.Values) Options {
	opts := Options{
		BitrateMode: strings.TrimSpace(v.Get("bitrateMode")),
		Bitrate:     strings.TrimSpace(v.Get("bitrate")),
		Channels:    strings.TrimSpace(v.Get("channels")),
	}
	if q, err := strconv.Atoi(strings.TrimSpace(v.Get("quality"))); err == nil {
		opts.Quality = &q
	}
	if sr, err := strconv.Atoi(strings.TrimSpace(v.Get("sampleRate"))); err == nil {
		opts.SampleRate = sr
	}
	return opts
}

// Normalize resolves o into concrete encoder settings. Bitrate mode is used
// only when explicitly requested with a well-formed bitrate; everything else
// falls back to quality mode. defaultQuality is used when the requested
// quality is missing or outside [-1, 10].
func (o Options) Normalize(defaultQuality int) Encoding {
	if !validQuality(defaultQuality) {
		defaultQuality = DefaultQuality
	}

	enc := Encoding{Mode: ModeQuality, Quality: defaultQuality}
	if o.Quality != nil && validQuality(*o.Quality) {
		enc.Quality = *o.Quality
	}
	if o.BitrateMode == ModeBitrate && bitratePattern.MatchString(o.Bitrate) && o.Bitrate != "0k" {
		enc.Mode = ModeBitrate
		enc.Bitrate = o.Bitrate
	}
	if o.SampleRate > 0 {
		enc.SampleRate = o.SampleRate
	}
	switch o.Channels {
	case "1":
		enc.Channels = 1
	case "2":
		enc.Channels = 2
	}
	return enc
}

func validQuality(q int) bool {
	return q >= MinQuality && q <= MaxQuality
}

// BuildArgs renders the ffmpeg command line for converting input to an OGG
// Vorbis file at output.
func BuildArgs(input, output string, enc Encoding) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty input path", ErrInvalidArgs)
	}
	if strings.TrimSpace(output) == "" {
		return nil, fmt.Errorf("%w: empty output path", ErrInvalidArgs)
	}
	if filepath.Clean(input) == filepath.Clean(output) {
		return nil, fmt.Errorf("%w: output would overwrite input", ErrInvalidArgs)
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", input,
		"-vn",
		"-c:a", AudioCodec,
	}

	switch enc.Mode {
	case ModeBitrate:
		if !bitratePattern.MatchString(enc.Bitrate) {
			return nil, fmt.Errorf("%w: bitrate %q", ErrInvalidArgs, enc.Bitrate)
		}
		args = append(args, "-b:a", enc.Bitrate)
	case ModeQuality, "":
		if !validQuality(enc.Quality) {
			return nil, fmt.Errorf("%w: quality %d", ErrInvalidArgs, enc.Quality)
		}
		args = append(args, "-q:a", strconv.Itoa(enc.Quality))
	default:
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidArgs, enc.Mode)
	}

	if enc.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(enc.SampleRate))
	}
	if enc.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(enc.Channels))
	}

	return append(args, output), nil
}

// OutputPathFor derives the output file for input: same stem, .ogg
// extension, placed in dir.
func OutputPathFor(dir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+OutputExt)
}
