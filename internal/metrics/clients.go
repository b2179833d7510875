// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oggconv_clients_connected",
		Help: "Push clients currently registered",
	})

	eventsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oggconv_events_dispatched_total",
		Help: "Push events handed to a connected client",
	}, []string{"type"})

	eventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oggconv_events_dropped_total",
		Help: "Push events dropped because the client was gone",
	}, []string{"type"})
)

func SetClientsConnected(n int) { clientsConnected.Set(float64(n)) }

func IncEventDispatched(eventType string) { eventsDispatchedTotal.WithLabelValues(eventType).Inc() }

func IncEventDropped(eventType string) { eventsDroppedTotal.WithLabelValues(eventType).Inc() }
