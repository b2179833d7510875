// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/oggconv/internal/clients"
	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/log"
)

// handleWebSocket registers the connection as a push client, greets it with
// its client id and holds the connection until the peer leaves.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	h := clients.NewWSHandle(conn, s.cfg.WebSocket)
	id := s.clients.Register(h)
	logger := log.WithComponentFromContext(log.ContextWithClientID(r.Context(), id), "api")
	logger.Info().Str(log.FieldEvent, "ws.connected").Msg("client connected")

	s.dispatcher.Dispatch(id, events.Welcome(id))

	if err := h.ReadLoop(); err != nil {
		logger.Debug().Err(err).Msg("websocket read ended")
	}
	s.clients.Unregister(id)
	logger.Info().Str(log.FieldEvent, "ws.disconnected").Msg("client disconnected")
}
