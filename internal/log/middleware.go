// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Middleware returns an HTTP access-log middleware. The request-scoped logger
// is stored in the request context so handlers can use FromContext. The
// response writer is wrapped with chi's WrapResponseWriter, which keeps
// http.Hijacker for websocket upgrades.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := WithContext(r.Context(), WithComponent("http"))
			hlog.NewHandler(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
				next.ServeHTTP(ww, r)
				logRequest(r, ww.Status(), ww.BytesWritten(), time.Since(start))
			})).ServeHTTP(w, r)
		})
	}
}

func logRequest(r *http.Request, status, size int, duration time.Duration) {
	if status == 0 {
		// Hijacked connections and handlers that never wrote.
		status = http.StatusOK
	}
	logger := hlog.FromRequest(r)
	evt := logger.Info()
	if status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.
		Str(FieldEvent, "request.handled").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("remote_addr", r.RemoteAddr).
		Msg("http request")
}

// Nop returns a disabled logger, handy in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
