// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"

	"github.com/ManuGH/oggconv/internal/ffmpeg"
)

type ffmpegRunner struct {
	r *ffmpeg.Runner
}

// NewFFmpegRunner adapts an ffmpeg.Runner to ProcessRunner.
func NewFFmpegRunner(r *ffmpeg.Runner) ProcessRunner {
	return ffmpegRunner{r: r}
}

func (a ffmpegRunner) Start(ctx context.Context, bin string, args []string) (Process, error) {
	p, err := a.r.Start(ctx, bin, args)
	if err != nil {
		// Never hand back a typed nil inside the interface.
		return nil, err
	}
	return p, nil
}
