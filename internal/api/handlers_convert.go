// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/oggconv/internal/ffmpeg"
	"github.com/ManuGH/oggconv/internal/jobs"
	"github.com/ManuGH/oggconv/internal/log"
	"github.com/ManuGH/oggconv/internal/metrics"
	"github.com/ManuGH/oggconv/internal/storage"
)

const (
	fileField     = "audioFile"
	clientIDField = "clientId"
	maxFieldBytes = 1 << 10
)

var (
	errBadForm   = errors.New("malformed multipart form")
	errNoFile    = errors.New("no audio file uploaded")
	errNoClient  = errors.New("clientId is required")
	errFieldSize = errors.New("form field too large")
)

// textFields are the non-file form fields read from a convert request.
var textFields = map[string]bool{
	clientIDField: true,
	"bitrateMode": true,
	"quality":     true,
	"bitrate":     true,
	"sampleRate":  true,
	"channels":    true,
}

type convertForm struct {
	values    url.Values
	inputPath string
	fileName  string
	size      int64
}

type convertResponse struct {
	Status   string `json:"status"`
	ClientID string `json:"clientId"`
	JobID    string `json:"jobId,omitempty"`
}

// handleConvert streams the upload to disk and starts a job. Progress and
// the result are pushed over the client's WebSocket, so a 202 only means
// the job was accepted.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "api")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload.Load())
	form, err := s.readConvertForm(ctx, r)
	if err != nil {
		if form.inputPath != "" {
			s.outputs.Discard(form.inputPath)
		}
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, errNoFile), errors.Is(err, errNoClient), errors.Is(err, errBadForm), errors.Is(err, errFieldSize):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error().Err(err).Str(log.FieldEvent, "upload.failed").Msg("could not store upload")
			writeError(w, http.StatusInternalServerError, "could not store upload")
		}
		return
	}
	metrics.ObserveUpload(form.size)

	clientID := form.values.Get(clientIDField)
	ctx = log.ContextWithClientID(ctx, clientID)
	req := jobs.Request{
		ClientID:    clientID,
		InputPath:   form.inputPath,
		DisplayName: storage.DisplayName(form.fileName),
		Options:     ffmpeg.ParseOptions(form.values),
	}
	// From here on the job manager owns the upload.
	if err := s.jobs.Start(ctx, req); err != nil {
		code, msg := startErrorStatus(err)
		if code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str(log.FieldClientID, clientID).Msg("job start failed")
		}
		writeError(w, code, msg)
		return
	}

	resp := convertResponse{Status: "started", ClientID: clientID}
	if j, ok := s.jobs.Lookup(clientID); ok {
		resp.JobID = j.ID
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// readConvertForm walks the multipart body once. The first audioFile part is
// written to the upload directory; later file parts are skipped. On error
// the returned form may still carry a stored upload the caller must discard.
func (s *Server) readConvertForm(ctx context.Context, r *http.Request) (convertForm, error) {
	form := convertForm{values: url.Values{}}
	mr, err := r.MultipartReader()
	if err != nil {
		return form, fmt.Errorf("%w: %w", errBadForm, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return form, fmt.Errorf("%w: %w", errBadForm, err)
		}

		name := part.FormName()
		switch {
		case name == fileField && form.inputPath == "" && part.FileName() != "":
			path, n, err := s.store.SaveUpload(ctx, part)
			if err != nil {
				_ = part.Close()
				return form, err
			}
			form.inputPath, form.fileName, form.size = path, part.FileName(), n
		case textFields[name] && part.FileName() == "":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				_ = part.Close()
				return form, fmt.Errorf("%w: %w", errBadForm, err)
			}
			if len(b) > maxFieldBytes {
				_ = part.Close()
				return form, fmt.Errorf("%w: %s", errFieldSize, name)
			}
			form.values.Set(name, strings.TrimSpace(string(b)))
		}
		_ = part.Close()
	}

	if form.inputPath == "" {
		return form, errNoFile
	}
	if form.values.Get(clientIDField) == "" {
		return form, errNoClient
	}
	return form, nil
}

func startErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, jobs.ErrUnknownClient):
		return http.StatusNotFound, "unknown client"
	case errors.Is(err, jobs.ErrJobAlreadyRunning):
		return http.StatusConflict, "a conversion is already running for this client"
	case errors.Is(err, jobs.ErrArgumentBuild):
		return http.StatusBadRequest, "invalid conversion options"
	case errors.Is(err, jobs.ErrShuttingDown):
		return http.StatusServiceUnavailable, "server is shutting down"
	default:
		return http.StatusInternalServerError, "failed to start transcoder"
	}
}
