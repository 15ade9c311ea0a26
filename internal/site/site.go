/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package site assembles the website service from its components.
package site

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssiautomations/website/httpclient"
	"github.com/ssiautomations/website/httpserver"
	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/internal/auth"
	"github.com/ssiautomations/website/internal/blog"
	"github.com/ssiautomations/website/internal/contact"
	"github.com/ssiautomations/website/internal/mailer"
	"github.com/ssiautomations/website/internal/newsletter"
	"github.com/ssiautomations/website/internal/storage"
	"github.com/ssiautomations/website/internal/throttle"
	"github.com/ssiautomations/website/internal/version"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/lrucache"
	"github.com/ssiautomations/website/profserver"
	"github.com/ssiautomations/website/ratelimit"
	"github.com/ssiautomations/website/restapi"
	"github.com/ssiautomations/website/service"
)

// Opts represents optional dependencies of Site.
type Opts struct {
	// Listener, if set, is used by the HTTP server instead of the configured address.
	Listener net.Listener
	// Mailer overrides the mailer built from configuration.
	Mailer mailer.Mailer
	// AuthProvider overrides the auth provider client built from configuration.
	AuthProvider auth.Provider
}

type prometheusCollector interface {
	MustRegister()
	Unregister()
}

// Site is the website service unit: HTTP server, background workers and, optionally, the profiling server.
type Site struct {
	*service.CompositeUnit

	Server  *httpserver.HTTPServer
	Limiter *ratelimit.Limiter
	Blog    *blog.Store

	cfg            *Config
	logger         log.FieldLogger
	db             *storage.Database
	collectors     []prometheusCollector
	promCollectors []prometheus.Collector
}

var _ service.Unit = (*Site)(nil)
var _ service.MetricsRegisterer = (*Site)(nil)

// New builds all components. The database is connected (with retries) and migrated before it returns.
func New(ctx context.Context, cfg *Config, logger log.FieldLogger, opts Opts) (*Site, error) {
	ns := cfg.Site.MetricsNamespace
	s := &Site{cfg: cfg, logger: logger}

	limiterMetrics := ratelimit.NewPrometheusMetrics(ns)
	counterCacheMetrics := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
		Namespace: ns, ConstLabels: prometheus.Labels{"cache": "rate_limit_counters"}})
	postCacheMetrics := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
		Namespace: ns, ConstLabels: prometheus.Labels{"cache": "blog_posts"}})
	clientMetrics := httpclient.NewPrometheusMetrics(ns)
	s.collectors = append(s.collectors, limiterMetrics, counterCacheMetrics, postCacheMetrics, clientMetrics)

	var err error
	if s.Limiter, err = ratelimit.New(cfg.RateLimit,
		ratelimit.WithMetricsCollector(limiterMetrics),
		ratelimit.WithCacheMetricsCollector(counterCacheMetrics),
	); err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	apiThrottle, err := s.newAPIThrottle()
	if err != nil {
		return nil, err
	}

	if s.Blog, err = blog.NewStore(cfg.Blog, logger, blog.StoreOpts{CacheMetrics: postCacheMetrics}); err != nil {
		return nil, fmt.Errorf("create blog store: %w", err)
	}

	m := opts.Mailer
	if m == nil {
		mailClient, clientErr := httpclient.NewWithOpts(cfg.HTTPClient, httpclient.Opts{
			RequestType:    "mail_api",
			UserAgent:      cfg.Site.UserAgent,
			Tokens:         httpclient.StaticToken(cfg.Mail.API.APIKey),
			LoggerProvider: loggerProvider(logger),
			Collector:      clientMetrics,
		})
		if clientErr != nil {
			return nil, fmt.Errorf("create mail API client: %w", clientErr)
		}
		if m, err = mailer.New(cfg.Mail, mailClient, logger); err != nil {
			return nil, fmt.Errorf("create mailer: %w", err)
		}
	}

	if s.db, err = storage.Open(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}
	subscribers := newsletter.NewRepository(s.db.DB)
	if err = subscribers.Migrate(ctx); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("migrate newsletter subscribers: %w", err)
	}

	var rootMiddlewares []func(http.Handler) http.Handler
	var authHandler *auth.Handler
	if cfg.Auth.Enabled {
		provider := opts.AuthProvider
		if provider == nil {
			authClient, clientErr := httpclient.NewWithOpts(cfg.HTTPClient, httpclient.Opts{
				RequestType:    "auth_provider",
				UserAgent:      cfg.Site.UserAgent,
				Tokens:         httpclient.StaticToken(cfg.Auth.APIKey),
				APIKeyHeader:   "apikey",
				LoggerProvider: loggerProvider(logger),
				Collector:      clientMetrics,
			})
			if clientErr != nil {
				_ = s.db.Close()
				return nil, fmt.Errorf("create auth provider client: %w", clientErr)
			}
			provider = auth.NewClient(cfg.Auth.URL, authClient)
		}
		session := auth.NewSessionMiddleware(cfg.Auth, auth.NewTokenValidator(cfg.Auth.JWTSecret), provider)
		rootMiddlewares = append(rootMiddlewares, session.Handler)
		authHandler = auth.NewHandler(cfg.Auth, provider, restapi.DefaultDomain)
	}

	contactHandler := contact.NewHandler(m, cfg.Mail.From, cfg.Mail.Recipient, restapi.DefaultDomain)
	newsletterHandler := newsletter.NewHandler(newsletter.NewService(subscribers), restapi.DefaultDomain)
	blogHandler := blog.NewHandler(s.Blog, cfg.Blog.FeaturedCount, restapi.DefaultDomain)
	static := newStaticHandler(cfg.Site.StaticDir)

	if s.Server, err = httpserver.New(cfg.Server, logger, httpserver.Opts{
		ErrorDomain: restapi.DefaultDomain,
		APIRoutes: func(r chi.Router) {
			contactHandler.Mount(r, s.Limiter, cfg.Contact.Limit)
			newsletterHandler.Mount(r, s.Limiter, cfg.Newsletter.Limit)
			r.Route("/v1", blogHandler.Mount)
			if authHandler != nil {
				authHandler.Mount(r, s.Limiter, cfg.Auth.OTPLimit)
			}
		},
		APIThrottle: apiThrottle,
		SiteRoutes: func(r chi.Router) {
			r.Handle("/*", static)
		},
		RootMiddlewares:  rootMiddlewares,
		HealthCheck:      s.healthCheck,
		MetricsNamespace: ns,
		Listener:         opts.Listener,
	}); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("create HTTP server: %w", err)
	}

	units := []service.Unit{
		s.Server,
		service.NewWorkerUnit(service.WorkerFunc(func(ctx context.Context) error {
			return s.Limiter.RunPeriodicCleanup(ctx, cfg.RateLimit.CleanupInterval)
		})),
	}
	if cfg.Newsletter.Welcome.Enabled {
		sender := newsletter.NewWelcomeSender(subscribers, m, cfg.Mail.From, cfg.Newsletter.Welcome, logger)
		units = append(units, service.NewWorkerUnit(
			service.NewPeriodicWorker("newsletter_welcome", sender, cfg.Newsletter.Welcome.Interval, logger)))
	}
	if cfg.ProfServer.Enabled {
		units = append(units, profserver.New(cfg.ProfServer, logger))
	}
	s.CompositeUnit = service.NewCompositeUnit(units...)
	s.promCollectors = append(s.promCollectors, version.NewBuildInfoGauge(ns))

	logger.Info("website assembled",
		log.String("version", version.Get().Version),
		log.Bool("auth", cfg.Auth.Enabled),
		log.Bool("throttle", cfg.Throttle.Enabled),
		log.String("mail_provider", cfg.Mail.Provider),
		log.String("database_driver", string(cfg.Database.Driver)),
	)
	return s, nil
}

func (s *Site) newAPIThrottle() (func(http.Handler) http.Handler, error) {
	if !s.cfg.Throttle.Enabled {
		return nil, nil
	}
	limiter, err := throttle.New(s.cfg.Throttle)
	if err != nil {
		return nil, fmt.Errorf("create API throttle: %w", err)
	}
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: s.cfg.Site.MetricsNamespace,
		Name:      "api_throttled_requests_total",
		Help:      "Number of API requests rejected by the per-client throttle.",
	})
	s.promCollectors = append(s.promCollectors, rejected)
	return middleware.Throttle(limiter, restapi.DefaultDomain, middleware.ThrottleOpts{Rejected: rejected}), nil
}

func (s *Site) healthCheck(ctx context.Context) (httpserver.HealthCheckResult, error) {
	status := httpserver.HealthCheckStatusOK
	if err := s.db.Ping(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		middleware.LoggerOrDisabled(ctx).Warn("database is unhealthy", log.Error(err))
		status = httpserver.HealthCheckStatusFail
	}
	return httpserver.HealthCheckResult{"database": status}, nil
}

// Stop stops all units and closes the database.
func (s *Site) Stop(gracefully bool) error {
	err := s.CompositeUnit.Stop(gracefully)
	if closeErr := s.db.Close(); closeErr != nil {
		s.logger.Error("database closing error", log.Error(closeErr))
		if err == nil {
			err = closeErr
		}
	}
	return err
}

// MustRegisterMetrics registers metrics of all components in Prometheus client and panics if any error occurs.
func (s *Site) MustRegisterMetrics() {
	restapi.MustInitAndRegisterMetrics(s.cfg.Site.MetricsNamespace)
	for _, c := range s.collectors {
		c.MustRegister()
	}
	prometheus.MustRegister(s.promCollectors...)
	s.CompositeUnit.MustRegisterMetrics()
}

// UnregisterMetrics unregisters metrics of all components in Prometheus client.
func (s *Site) UnregisterMetrics() {
	s.CompositeUnit.UnregisterMetrics()
	for _, g := range s.promCollectors {
		prometheus.Unregister(g)
	}
	for _, c := range s.collectors {
		c.Unregister()
	}
	restapi.UnregisterMetrics()
}

// Close releases resources of a Site that was never started.
func (s *Site) Close() error {
	return s.db.Close()
}

func loggerProvider(fallback log.FieldLogger) func(ctx context.Context) log.FieldLogger {
	return func(ctx context.Context) log.FieldLogger {
		if l := middleware.GetLoggerFromContext(ctx); l != nil {
			return l
		}
		return fallback
	}
}
