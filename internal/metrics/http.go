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
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oggconv_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oggconv_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oggconv_http_response_size_bytes",
		Help:    "HTTP response sizes in bytes",
		Buckets: prometheus.ExponentialBuckets(100, 10, 8),
	}, []string{"method", "route"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oggconv_upload_size_bytes",
		Help:    "Size of accepted uploads",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8), // 64KiB .. 1GiB
	})
)

// HTTPInFlight adjusts the in-flight request gauge.
func HTTPInFlight(delta int) { httpRequestsInFlight.Add(float64(delta)) }

// ObserveHTTPRequest records one finished request. route must be the
// router pattern, not the raw path.
func ObserveHTTPRequest(method, route, status string, elapsed time.Duration, size int) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
	if size > 0 {
		httpResponseSize.WithLabelValues(method, route).Observe(float64(size))
	}
}

func ObserveUpload(bytes int64) { uploadBytes.Observe(float64(bytes)) }
