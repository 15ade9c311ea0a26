/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

// systemEndpoints are neither measured nor limited.
var systemEndpoints = []string{"/metrics", "/healthz"}

func applyDefaultMiddlewares(
	router chi.Router, cfg *Config, logger log.FieldLogger, opts *Opts, promMetrics *middleware.HTTPRequestPrometheusMetrics,
) error {
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(rw, r.WithContext(middleware.NewContextWithRequestStartTime(r.Context(), time.Now())))
		})
	})
	clientIPs, err := middleware.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("create client IP resolver: %w", err)
	}
	router.Use(middleware.ClientIPMiddleware(clientIPs))
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggingWithOpts(logger, middleware.LoggingOpts{
		RequestStart:         cfg.Log.RequestStart,
		ExcludedEndpoints:    cfg.Log.ExcludedEndpoints,
		SecretQueryParams:    cfg.Log.SecretQueryParams,
		SlowRequestThreshold: cfg.Log.SlowRequestThreshold,
	}))
	router.Use(middleware.Recovery(opts.ErrorDomain))
	router.Use(middleware.HTTPRequestMetrics(promMetrics, GetChiRoutePattern,
		middleware.HTTPRequestMetricsOpts{ExcludedEndpoints: systemEndpoints}))

	if cfg.Limits.MaxRequests > 0 {
		inFlightLimit, err := middleware.InFlightLimit(cfg.Limits.MaxRequests, opts.ErrorDomain,
			middleware.InFlightLimitOpts{
				BacklogTimeout:    time.Second,
				RetryAfter:        5 * time.Second,
				ExcludedEndpoints: systemEndpoints,
			})
		if err != nil {
			return fmt.Errorf("create in-flight limit middleware: %w", err)
		}
		router.Use(inFlightLimit)
	}
	if cfg.Limits.MaxBodySizeBytes > 0 {
		router.Use(middleware.RequestBodyLimit(cfg.Limits.MaxBodySizeBytes, opts.ErrorDomain))
	}
	router.Use(opts.RootMiddlewares...)
	return nil
}

func configureRoutes(router chi.Router, opts *Opts) {
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Method(http.MethodGet, "/metrics", metricsHandler)
	router.Method(http.MethodGet, "/healthz", NewHealthCheckHandler(opts.HealthCheck))

	if opts.APIRoutes != nil {
		router.Route("/api", func(r chi.Router) {
			if opts.APIThrottle != nil {
				r.Use(opts.APIThrottle)
			}
			opts.APIRoutes(r)
			r.NotFound(func(rw http.ResponseWriter, r *http.Request) {
				restapi.RespondError(rw, http.StatusNotFound,
					restapi.NewError(opts.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound),
					middleware.GetLoggerFromContext(r.Context()))
			})
		})
	}
	if opts.SiteRoutes != nil {
		opts.SiteRoutes(router)
	}

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(opts.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound),
			middleware.GetLoggerFromContext(r.Context()))
	})
	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		restapi.RespondError(rw, http.StatusMethodNotAllowed,
			restapi.NewError(opts.ErrorDomain, restapi.ErrCodeMethodNotAllowed, restapi.ErrMessageMethodNotAllowed),
			middleware.GetLoggerFromContext(r.Context()))
	})
}

// GetChiRoutePattern extracts the chi route pattern of the request.
func GetChiRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	routePath := r.URL.RawPath
	if routePath == "" {
		routePath = r.URL.Path
	}
	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, routePath) {
		return ""
	}
	return tctx.RoutePattern()
}
