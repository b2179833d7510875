// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import "net/http"

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version,omitempty"`
	ActiveJobs     int    `json:"activeJobs"`
	Clients        int    `json:"clients"`
	PendingOutputs int    `json:"pendingOutputs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Version:        s.cfg.Version,
		ActiveJobs:     len(s.jobs.Active()),
		Clients:        s.clients.Count(),
		PendingOutputs: s.outputs.PendingCount(),
	})
}
