/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, the rotation engine and
// the HTTP API into one runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/api"
	"github.com/visarlabs/visar/internal/cache"
	"github.com/visarlabs/visar/internal/clock"
	"github.com/visarlabs/visar/internal/config"
	"github.com/visarlabs/visar/internal/db"
	"github.com/visarlabs/visar/internal/eventbus"
	"github.com/visarlabs/visar/internal/events"
	"github.com/visarlabs/visar/internal/expiry"
	"github.com/visarlabs/visar/internal/rotation"
	"github.com/visarlabs/visar/internal/store"
	"github.com/visarlabs/visar/internal/sweeper"
	"github.com/visarlabs/visar/internal/telemetry"
	"github.com/visarlabs/visar/internal/webhooks"
)

// Server bundles the HTTP API and its supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db       *gorm.DB
	cache    *cache.Cache
	engine   *rotation.Engine
	api      *api.API
	bus      *events.Bus
	natsBus  *eventbus.NATSBus
	sweeper  *sweeper.Service
	webhooks *webhooks.Service

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New builds a fully wired server. The HTTP listener is not started;
// callers run HTTPServer().ListenAndServe themselves.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(srv.router, "visar-api"),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.RegisterCallbacks(database); err != nil {
		return fmt.Errorf("register db callbacks: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if s.cfg.CacheEnabled {
		decisionCache, err := cache.New(cache.Config{
			RedisAddr:      s.cfg.RedisAddr,
			RedisPassword:  s.cfg.RedisPassword,
			RedisDB:        s.cfg.RedisDB,
			DecisionTTL:    cache.DefaultDecisionTTL,
			DisableOnError: true,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("init decision cache: %w", err)
		}
		s.cache = decisionCache
		s.DeferClose(decisionCache.Close)
	}

	// The API publishes through NATS when events are enabled; the
	// local bus still receives every event either way.
	var publisher api.Publisher = s.bus
	if s.cfg.EventsEnabled {
		natsCfg := eventbus.DefaultNATSConfig()
		if s.cfg.NATSURL != "" {
			natsCfg.URL = s.cfg.NATSURL
		}
		natsBus, err := eventbus.NewNATSBus(natsCfg, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("init event bus: %w", err)
		}
		s.natsBus = natsBus
		s.DeferClose(natsBus.Close)
		publisher = natsBus
	}

	engine := rotation.New(
		store.NewContentRepository(database),
		store.NewStateStore(database),
		clock.System{},
		s.logger,
	)
	engine.SetEmptyRecheck(s.cfg.EmptyRecheckInterval)
	engine.SetNotifier(expiry.NewHook(expiry.NewBusSink(publisher), s.cache.Client(), s.logger))
	s.engine = engine

	s.sweeper = sweeper.New(database, engine, publisher, sweeper.DefaultInterval, s.logger)
	s.webhooks = webhooks.NewService(database, s.bus, s.logger)

	s.api = api.New(database, engine, s.cache, publisher, s.logger)
	s.api.SetSelectTimeout(s.cfg.SelectTimeout)
	s.api.SetWebhookService(s.webhooks)

	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}

// HTTPServer exposes the configured listener.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("boundary sweeper exited")
		}
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.webhooks.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}

	if s.cfg.MetricsBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		metricsServer := &http.Server{
			Addr:              s.cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 15 * time.Second,
		}
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Str("addr", s.cfg.MetricsBind).Msg("metrics server error")
			}
		}()
		s.DeferClose(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(ctx)
		})
	}
}

// runCacheInvalidationListener drops cached decisions when content
// mutations are announced on the bus. Mutations performed by this
// process already invalidate directly; the listener covers events
// mirrored from other nodes.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	contentUpdated := s.bus.Subscribe(events.EventContentUpdated)
	contentDeleted := s.bus.Subscribe(events.EventContentDeleted)
	videoUpdated := s.bus.Subscribe(events.EventVideoUpdated)
	videoDeleted := s.bus.Subscribe(events.EventVideoDeleted)
	policyUpdated := s.bus.Subscribe(events.EventPolicyUpdated)

	defer func() {
		s.bus.Unsubscribe(events.EventContentUpdated, contentUpdated)
		s.bus.Unsubscribe(events.EventContentDeleted, contentDeleted)
		s.bus.Unsubscribe(events.EventVideoUpdated, videoUpdated)
		s.bus.Unsubscribe(events.EventVideoDeleted, videoDeleted)
		s.bus.Unsubscribe(events.EventPolicyUpdated, policyUpdated)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload := <-contentUpdated:
			s.invalidateFromPayload(ctx, payload)
		case payload := <-contentDeleted:
			s.invalidateFromPayload(ctx, payload)
		case payload := <-videoUpdated:
			s.invalidateFromPayload(ctx, payload)
		case payload := <-videoDeleted:
			s.invalidateFromPayload(ctx, payload)
		case payload := <-policyUpdated:
			s.invalidateFromPayload(ctx, payload)
		}
	}
}

func (s *Server) invalidateFromPayload(ctx context.Context, payload events.Payload) {
	contentID, ok := payload["content_item_id"].(string)
	if !ok || contentID == "" {
		return
	}
	s.logger.Debug().Str("content_item", contentID).Msg("invalidating cached decision")
	s.cache.InvalidateDecision(ctx, contentID)
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}
