/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver serves pprof endpoints on a separate, usually local, address.
package profserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/service"
)

// ProfServer is a service.Unit serving /debug/pprof.
type ProfServer struct {
	URL        string
	HTTPServer *http.Server
	Logger     log.FieldLogger
	started    atomic.Bool
	done       chan struct{}
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new profiling server.
func New(cfg *Config, logger log.FieldLogger) *ProfServer {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.LoggingWithOpts(logger, middleware.LoggingOpts{RequestStart: true}),
	)
	router.Mount("/debug", chimiddleware.Profiler())

	return &ProfServer{
		URL:        "http://" + cfg.Address,
		HTTPServer: &http.Server{Addr: cfg.Address, Handler: router, ReadHeaderTimeout: 5 * time.Second},
		Logger:     logger.With(log.String("address", cfg.Address)),
		done:       make(chan struct{}),
	}
}

// Start serves requests until Stop is called.
func (s *ProfServer) Start(fatalError chan<- error) {
	s.started.Store(true)
	defer close(s.done)

	s.Logger.Info("starting profiling HTTP server...")
	if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Logger.Error("profiling HTTP server error", log.Error(err))
		fatalError <- err
		return
	}
	s.Logger.Info("profiling HTTP server closed")
}

// Stop closes the server immediately. Profiling requests are never drained.
func (s *ProfServer) Stop(bool) error {
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	if s.started.Load() {
		<-s.done
	}
	return nil
}
