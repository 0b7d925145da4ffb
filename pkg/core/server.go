/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"github.com/mfreeman451/opsdeck/pkg/alerts"
	"github.com/mfreeman451/opsdeck/pkg/api"
	"github.com/mfreeman451/opsdeck/pkg/config"
	"github.com/mfreeman451/opsdeck/pkg/db"
	grpcx "github.com/mfreeman451/opsdeck/pkg/grpc"
	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/monitoring"
	"github.com/mfreeman451/opsdeck/pkg/panel"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/view"
)

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHealthServer shares a gRPC health server, typically the one the
// lifecycle runner serves.
func WithHealthServer(hs *health.Server) Option {
	return func(s *Server) {
		if hs != nil {
			s.health = hs
		}
	}
}

// WithoutRuntimeMetrics skips the Go and process collectors.
func WithoutRuntimeMetrics() Option {
	return func(s *Server) {
		s.skipRuntime = true
	}
}

// NewServer opens the database and builds every feed, panel and surface
// described by cfg. Nothing is polled until Start.
func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: zap.NewNop(),
		health: health.NewServer(),
	}

	for _, o := range opts {
		o(s)
	}

	database, err := db.New(ctx, cfg.DBPath, s.logger.Named("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	s.db = database

	s.registry = prometheus.NewRegistry()
	if !s.skipRuntime {
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s.collectors = metrics.NewCollectors(s.registry)
	s.metrics = metrics.NewManager(cfg.Metrics, s.collectors, s.logger.Named("metrics"))
	s.alerter = alerts.FromConfig(cfg.Webhooks, s.logger.Named("alerts"))

	if err := s.build(); err != nil {
		_ = database.Close()

		return nil, err
	}

	return s, nil
}

func (s *Server) build() error {
	panels, err := s.buildPanels()
	if err != nil {
		return err
	}

	s.panels, err = panel.NewRegistry(panels...)
	if err != nil {
		return err
	}

	s.composer = view.NewComposer(s.panels)
	s.dispatcher = panel.NewDispatcher(s.db, s.db, s.collectors, panel.DispatcherConfig{
		RatePerSecond: s.config.Actions.RatePerSecond,
		Burst:         s.config.Actions.Burst,
	}, s.logger.Named("actions"))

	s.api = api.NewAPIServer(s.panels, s.composer, s.dispatcher,
		api.WithMetrics(s.metrics),
		api.WithActivity(s.db),
		api.WithGatherer(s.registry),
		api.WithCollectors(s.collectors),
		api.WithLogger(s.logger.Named("api")),
	)

	for _, h := range s.feeds {
		s.unsubs = append(s.unsubs, h.subscribe(s.api.Notify))
	}

	if s.edges != nil {
		s.edges.OnChange(func([]models.DependencyEdge) { s.api.Notify() })
	}

	watched := make([]monitoring.HealthProvider, 0, len(s.feeds))

	for _, h := range s.feeds {
		if h.monitored {
			watched = append(watched, h.health)
		}
	}

	s.watcher = monitoring.NewWatcher(watchInterval, watched,
		monitoring.WithActivity(s.db),
		monitoring.WithAlerter(s.alerter),
		monitoring.WithStatusSink(grpcx.NewHealthReporter(s.health)),
		monitoring.WithCollectors(s.collectors),
		monitoring.WithLogger(s.logger.Named("watcher")),
	)

	return nil
}

// Start begins polling and serves the HTTP API until Stop is called or
// the API fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return errAlreadyStarted
	}

	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, h := range s.feeds {
		if err := h.start(ctx); err != nil {
			return fmt.Errorf("failed to start %s feed: %w", h.name, err)
		}
	}

	if s.edges != nil && s.config.Graph.EdgesFile != "" {
		if err := s.edges.Watch(ctx); err != nil {
			s.logger.Warn("Edge file will not be watched", zap.Error(err))
		}
	}

	s.wg.Add(2)

	go func() {
		defer s.wg.Done()
		s.watcher.Run(ctx)
	}()

	go func() {
		defer s.wg.Done()
		s.runCleanup(ctx)
	}()

	s.logger.Info("Dashboard started",
		zap.Int("feeds", len(s.feeds)),
		zap.Int("panels", len(s.panels.All())))

	return s.api.Start(s.config.ListenAddr)
}

// Stop shuts down the API, every feed and background loop, then the database.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error

	if err := s.api.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api: %w", err))
	}

	for _, unsub := range s.unsubs {
		unsub()
	}

	for _, h := range s.feeds {
		h.stop()
	}

	s.watcher.Stop(ctx)

	if s.edges != nil {
		s.edges.Stop()
	}

	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	return errors.Join(errs...)
}

// Snapshot refreshes every feed once, concurrently, and renders page.
func (s *Server) Snapshot(ctx context.Context, page string) (view.Page, error) {
	g, gctx := errgroup.WithContext(ctx)

	for _, h := range s.feeds {
		g.Go(func() error {
			h.refresh(gctx)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return view.Page{}, err
	}

	return s.composer.Page(page, time.Now())
}

// Handler exposes the HTTP API without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.api
}

// HealthServer is the gRPC health server carrying per-source statuses.
func (s *Server) HealthServer() *health.Server {
	return s.health
}

func (s *Server) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *Server) cleanup(ctx context.Context) {
	if err := s.db.CleanOldData(ctx, s.config.Retention.Or(defaultRetention)); err != nil {
		s.logger.Error("Failed to clean old data", zap.Error(err))
	}

	s.metrics.CleanupStaleSources(staleSourceAfter)
}

// handle erases a feed's payload type.
func handle[T any](feed poller.Feed[T], staleAfter time.Duration, monitored bool) feedHandle {
	return feedHandle{
		name:  feed.Name(),
		start: feed.Start,
		stop:  feed.Stop,
		refresh: func(ctx context.Context) {
			feed.Refresh(ctx)
		},
		subscribe: func(fn func()) func() {
			return feed.Subscribe(func(poller.State[T]) { fn() })
		},
		health:    monitoring.FromFeed(feed, staleAfter),
		monitored: monitored,
	}
}

var _ CoreService = (*Server)(nil)
