// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oggconv_jobs_started_total",
		Help: "Job start attempts by result",
	}, []string{"result"}) // result=ok|unknown_client|already_running|invalid_args|spawn_error

	jobsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oggconv_jobs_finished_total",
		Help: "Jobs that reached a terminal state",
	}, []string{"state"}) // state=completed|failed|cancelled

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oggconv_jobs_active",
		Help: "Conversion jobs currently running",
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oggconv_job_duration_seconds",
		Help:    "Wall-clock duration of conversion jobs by terminal state",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12), // 250ms .. ~8.5min
	}, []string{"state"})
)

// IncJobStart records the outcome of a JobManager.Start call.
func IncJobStart(result string) { jobsStartedTotal.WithLabelValues(result).Inc() }

// JobRunning adjusts the active jobs gauge.
func JobRunning(delta int) { jobsActive.Add(float64(delta)) }

// ObserveJobFinished records a terminal state and the job duration.
func ObserveJobFinished(state string, elapsed time.Duration) {
	jobsFinishedTotal.WithLabelValues(state).Inc()
	jobDuration.WithLabelValues(state).Observe(elapsed.Seconds())
}
