// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the service lifecycle: wiring, serving, reload and
// graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/oggconv/internal/config"
	"github.com/ManuGH/oggconv/internal/jobs"
	"github.com/ManuGH/oggconv/internal/log"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Option customises an App.
type Option func(*options)

type options struct {
	runner       jobs.ProcessRunner
	reloadSignal os.Signal
}

// WithProcessRunner replaces the ffmpeg runner, for tests.
func WithProcessRunner(r jobs.ProcessRunner) Option {
	return func(o *options) { o.runner = r }
}

// WithReloadSignal sets the signal that triggers a config reload. nil
// disables signal-driven reloads. The default is SIGHUP.
func WithReloadSignal(sig os.Signal) Option {
	return func(o *options) { o.reloadSignal = sig }
}

// App is a fully wired service instance.
type App struct {
	logger       zerolog.Logger
	holder       *config.Holder
	c            *components
	reloadSignal os.Signal
}

func New(ctx context.Context, holder *config.Holder, opts ...Option) (*App, error) {
	if holder == nil {
		return nil, ErrMissingConfig
	}
	o := options{reloadSignal: syscall.SIGHUP}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := bootstrap(ctx, holder, o.runner)
	if err != nil {
		return nil, err
	}
	return &App{
		logger:       log.WithComponent("daemon"),
		holder:       holder,
		c:            c,
		reloadSignal: o.reloadSignal,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.c.api.Handler() }

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	addr := a.holder.Get().ListenAddr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrServerStartFailed, addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln together with the orphan sweeper, the
// config watcher and the reload signal handler. When ctx ends it shuts
// everything down in order: stop accepting requests, stop jobs, drop push
// clients, flush traces.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().
			Str(log.FieldEvent, "server.listening").
			Str("addr", ln.Addr().String()).
			Msg("HTTP server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %w", ErrServerStartFailed, err)
		}
		return nil
	})

	g.Go(func() error { return a.c.sweeper.Run(gctx) })

	g.Go(func() error {
		if err := a.holder.Watch(gctx); err != nil {
			// Hot reload is best effort.
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("config watcher unavailable")
		}
		return nil
	})

	if a.reloadSignal != nil {
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, a.reloadSignal)
			defer signal.Stop(hup)
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hup:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal")
					_ = a.holder.Reload()
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return a.shutdown(shutdownCtx, srv)
	})

	return g.Wait()
}

func (a *App) shutdown(ctx context.Context, srv *http.Server) error {
	a.logger.Info().Str(log.FieldEvent, "server.shutdown").Msg("shutting down")

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.c.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("job shutdown: %w", err))
	}
	a.c.registry.CloseAll()
	if err := a.c.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error().Err(err).Msg("shutdown incomplete")
		return err
	}
	a.logger.Info().Str(log.FieldEvent, "server.stopped").Msg("shutdown complete")
	return nil
}
