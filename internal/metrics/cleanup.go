// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cleanupDeletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "oggconv_cleanup_deletions_total",
	Help: "Temp file deletions by kind and outcome",
}, []string{"kind", "result"}) // kind=input|output|orphan, result=ok|missing|error

func IncCleanup(kind, result string) { cleanupDeletionsTotal.WithLabelValues(kind, result).Inc() }
