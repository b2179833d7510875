// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/oggconv/internal/log"
	"github.com/ManuGH/oggconv/internal/storage"
)

// handleDownload serves a completed output exactly once and deletes it
// afterwards, whether or not the client received every byte.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	token := chi.URLParam(r, "token")

	path, err := s.store.Resolve(token)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrInvalidToken) {
			logger.Error().Err(err).Str("token", token).Msg("resolve download")
		}
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if !s.outputs.Claim(path) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer s.outputs.Release(path)

	f, err := os.Open(path) // #nosec G304 -- confined to the output directory by Resolve
	if err != nil {
		logger.Error().Err(err).Str(log.FieldPath, path).Msg("open download")
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read file")
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = storage.Token(path)
	}
	w.Header().Set("Content-Type", "audio/ogg")
	w.Header().Set("Content-Disposition", storage.ContentDisposition(name))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "", info.ModTime(), f)

	logger.Info().
		Str(log.FieldEvent, "download.served").
		Str(log.FieldPath, path).
		Int64("bytes", info.Size()).
		Msg("output downloaded")
}
