// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors for conversion jobs, push
// clients, transcoder processes and temp-file cleanup. Collectors register on
// the default registry via promauto and are exposed at /metrics.
package metrics
