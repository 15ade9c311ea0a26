/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/service"
)

// Opts represents options for creating HTTPServer.
type Opts struct {
	// ErrorDomain is used for error responses produced by the server itself.
	ErrorDomain string
	// APIRoutes registers JSON endpoints under /api.
	APIRoutes func(r chi.Router)
	// APIThrottle, if set, wraps every /api route.
	APIThrottle func(next http.Handler) http.Handler
	// SiteRoutes registers non-API routes on the root router (pages, static files).
	SiteRoutes func(r chi.Router)
	// RootMiddlewares run after the default ones for every request.
	RootMiddlewares []func(http.Handler) http.Handler
	HealthCheck     HealthCheck
	// MetricsHandler serves /metrics, promhttp.Handler by default.
	MetricsHandler   http.Handler
	MetricsNamespace string
	// Listener, if set, is used instead of listening on the configured address.
	Listener net.Listener
}

// HTTPServer wraps http.Server with a chi router and implements service.Unit.
type HTTPServer struct {
	HTTPServer      *http.Server
	HTTPRouter      chi.Router
	Logger          log.FieldLogger
	TLS             TLSConfig
	ShutdownTimeout time.Duration

	listener    net.Listener
	port        atomic.Int32
	started     atomic.Bool
	serveDone   chan struct{}
	promMetrics *middleware.HTTPRequestPrometheusMetrics
}

var _ service.Unit = (*HTTPServer)(nil)
var _ service.MetricsRegisterer = (*HTTPServer)(nil)

// New creates a new HTTPServer with request ids, logging, panic recovery, metrics,
// request limits, /healthz and /metrics.
func New(cfg *Config, logger log.FieldLogger, opts Opts) (*HTTPServer, error) { //nolint:gocritic
	if opts.ErrorDomain == "" {
		return nil, fmt.Errorf("error domain must be set")
	}
	promMetrics := middleware.NewHTTPRequestPrometheusMetricsWithOpts(
		middleware.HTTPRequestPrometheusMetricsOpts{Namespace: opts.MetricsNamespace})

	router := chi.NewRouter()
	if err := applyDefaultMiddlewares(router, cfg, logger, &opts, promMetrics); err != nil {
		return nil, err
	}
	configureRoutes(router, &opts)

	return &HTTPServer{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			WriteTimeout:      cfg.Timeouts.Write,
			ReadTimeout:       cfg.Timeouts.Read,
			ReadHeaderTimeout: cfg.Timeouts.ReadHeader,
			IdleTimeout:       cfg.Timeouts.Idle,
		},
		HTTPRouter:      router,
		Logger:          logger,
		TLS:             cfg.TLS,
		ShutdownTimeout: cfg.Timeouts.Shutdown,
		listener:        opts.Listener,
		serveDone:       make(chan struct{}),
		promMetrics:     promMetrics,
	}, nil
}

// Start serves HTTP requests and blocks until the server is stopped.
// Fatal errors go to the fatalError channel.
func (s *HTTPServer) Start(fatalError chan<- error) {
	s.started.Store(true)
	defer close(s.serveDone)

	logger := s.Logger.With(
		log.String("address", s.HTTPServer.Addr),
		log.Bool("tls", s.TLS.Enabled),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)
	logger.Info("starting HTTP server...")

	var err error
	if s.listener == nil {
		if s.listener, err = net.Listen("tcp", s.HTTPServer.Addr); err != nil {
			logger.Error("HTTP server error", log.Error(err))
			fatalError <- err
			return
		}
	}
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(tcpAddr.Port)) //nolint:gosec
	}

	if s.TLS.Enabled {
		err = s.HTTPServer.ServeTLS(s.listener, s.TLS.Certificate, s.TLS.Key)
	} else {
		err = s.HTTPServer.Serve(s.listener)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", log.Error(err))
		fatalError <- err
		return
	}
	logger.Info("HTTP server closed")
}

// Stop stops the server. A graceful stop waits for in-flight requests up to the shutdown timeout.
func (s *HTTPServer) Stop(gracefully bool) error {
	if !gracefully {
		s.Logger.Info("closing HTTP server...")
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("HTTP server closing error", log.Error(err))
			return err
		}
		s.waitServeDone()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	s.Logger.Info("shutting down HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("HTTP server shutting down error", log.Error(err))
		return err
	}
	s.waitServeDone()
	s.Logger.Info("HTTP server shut down")
	return nil
}

// waitServeDone waits for Start to return if it was ever called.
func (s *HTTPServer) waitServeDone() {
	if !s.started.Load() {
		return
	}
	<-s.serveDone
}

// MustRegisterMetrics registers metrics in Prometheus client and panics if any error occurs.
func (s *HTTPServer) MustRegisterMetrics() {
	s.promMetrics.MustRegister()
}

// UnregisterMetrics unregisters metrics in Prometheus client.
func (s *HTTPServer) UnregisterMetrics() {
	s.promMetrics.Unregister()
}

// GetPort returns the TCP port the server listens on, 0 until it has started.
func (s *HTTPServer) GetPort() int {
	return int(s.port.Load())
}
