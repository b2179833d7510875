// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oggconv_ffmpeg_start_total",
		Help: "Total number of transcoder process starts",
	}, []string{"result"})

	ffmpegExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oggconv_ffmpeg_exit_total",
		Help: "Total number of transcoder process exits",
	}, []string{"reason"}) // reason=clean|error|killed

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oggconv_proc_terminate_total",
		Help: "Signals sent to transcoder process groups",
	}, []string{"signal", "result"})
)

func IncFFmpegStart(result string) { ffmpegStartTotal.WithLabelValues(result).Inc() }

func IncFFmpegExit(reason string) { ffmpegExitTotal.WithLabelValues(reason).Inc() }

// IncProcTerminate records a signal delivery attempt (result=sent|esrch|error).
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}
