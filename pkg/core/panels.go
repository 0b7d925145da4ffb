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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/config"
	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/graph"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/normalize"
	"github.com/mfreeman451/opsdeck/pkg/panel"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/source"
	"github.com/mfreeman451/opsdeck/pkg/source/alertmanager"
	"github.com/mfreeman451/opsdeck/pkg/source/homeassistant"
	"github.com/mfreeman451/opsdeck/pkg/source/hostinfo"
	"github.com/mfreeman451/opsdeck/pkg/source/imagegen"
	"github.com/mfreeman451/opsdeck/pkg/source/n8n"
	"github.com/mfreeman451/opsdeck/pkg/source/probe"
	"github.com/mfreeman451/opsdeck/pkg/source/prom"
)

const (
	embedPanelID    = "grafana"
	embedPanelTitle = "Grafana"
)

// buildPanels creates one feed per enabled source and the panels over them,
// in the order the overview shows them.
func (s *Server) buildPanels() ([]panel.Panel, error) {
	thresholds := derived.Thresholds{Good: s.config.Health.Good, Degraded: s.config.Health.Degraded}

	var panels []panel.Panel

	workflows, err := s.workflowPanel()
	if err != nil {
		return nil, err
	}

	home, err := s.homePanel()
	if err != nil {
		return nil, err
	}

	queue, err := s.queuePanel()
	if err != nil {
		return nil, err
	}

	nodes, nodesStale, err := s.nodesFeed()
	if err != nil {
		return nil, err
	}

	services, servicesStale := s.servicesFeed()

	alertsPanel, err := s.alertsPanel()
	if err != nil {
		return nil, err
	}

	for _, p := range []panel.Panel{workflows, home, queue} {
		if p != nil {
			panels = append(panels, p)
		}
	}

	if nodes != nil {
		panels = append(panels, panel.NewNodesPanel(nodes, thresholds, nodesStale))
	}

	if services != nil {
		panels = append(panels, panel.NewServicesPanel(services, thresholds, servicesStale))
	}

	if alertsPanel != nil {
		panels = append(panels, alertsPanel)
	}

	panels = append(panels, s.activityPanel())

	if services != nil {
		edges, err := graph.NewEdgeStore(s.config.Graph.EdgesFile, s.config.Graph.Edges, s.logger.Named("edges"))
		if err != nil {
			return nil, fmt.Errorf("failed to load dependency edges: %w", err)
		}

		s.edges = edges
		panels = append(panels, panel.NewGraphPanel(services, nodes, edges, s.config.Graph.Layout(), servicesStale))
	}

	if g := s.config.Sources.Grafana; g.DashboardID != "" && g.BaseURL != "" {
		panels = append(panels, panel.NewEmbedPanel(embedPanelID, embedPanelTitle, panel.EmbedConfig{
			BaseURL:     g.BaseURL,
			DashboardID: g.DashboardID,
			From:        g.From,
			To:          g.To,
			Theme:       g.Theme,
			Kiosk:       g.Kiosk,
			Variables:   g.Variables,
		}))
	}

	return panels, nil
}

func (s *Server) httpOptions(sc config.SourceConfig) []source.HTTPOption {
	return []source.HTTPOption{
		source.WithTimeout(sc.Timeout.Or(s.config.FetchTimeout.Or(defaultTimeout))),
		source.WithHeaders(sc.Headers),
	}
}

func (s *Server) pollConfig(interval, timeout config.Duration) poller.Config {
	return poller.Config{
		Interval: interval.Or(defaultInterval),
		Timeout:  timeout.Or(s.config.FetchTimeout.Or(defaultTimeout)),
	}
}

// register adds feed to the managed set and returns its staleness window.
func register[T any](s *Server, feed poller.Feed[T], interval time.Duration, monitored bool) time.Duration {
	staleAfter := s.config.StaleAfter(interval)
	s.feeds = append(s.feeds, handle(feed, staleAfter, monitored))

	return staleAfter
}

func feedOptions[T any](s *Server, merge poller.MergeFunc[T]) []poller.Option[T] {
	opts := []poller.Option[T]{
		poller.WithLogger[T](s.logger.Named("poller")),
		poller.WithRecorder[T](s.metrics),
	}

	if merge != nil {
		opts = append(opts, poller.WithMerge(merge))
	}

	return opts
}

func (s *Server) workflowPanel() (panel.Panel, error) {
	sc := s.config.Sources.N8N
	if !sc.Enabled() {
		return nil, nil
	}

	client, err := n8n.New(sc.BaseURL, sc.ExecutionLimit, s.httpOptions(sc.SourceConfig)...)
	if err != nil {
		return nil, fmt.Errorf("workflow source: %w", err)
	}

	cfg := s.pollConfig(sc.Interval, sc.Timeout)
	feed := poller.New(source.Map(client, normalize.Executions), cfg,
		feedOptions[[]models.WorkflowExecution](s, normalize.MergeExecutions)...)
	staleAfter := register[[]models.WorkflowExecution](s, feed, cfg.Interval, true)

	return panel.NewWorkflowPanel(feed, sc.Workflows, client, staleAfter), nil
}

func (s *Server) homePanel() (panel.Panel, error) {
	sc := s.config.Sources.HomeAssistant
	if !sc.Enabled() {
		return nil, nil
	}

	client, err := homeassistant.New(sc.BaseURL, sc.Domains, s.httpOptions(sc.SourceConfig)...)
	if err != nil {
		return nil, fmt.Errorf("home source: %w", err)
	}

	cfg := s.pollConfig(sc.Interval, sc.Timeout)
	feed := poller.New(source.Map(client, normalize.Devices), cfg, feedOptions[[]models.DeviceEntity](s, nil)...)
	staleAfter := register[[]models.DeviceEntity](s, feed, cfg.Interval, true)

	return panel.NewHomePanel(feed, client, staleAfter), nil
}

func (s *Server) queuePanel() (panel.Panel, error) {
	sc := s.config.Sources.ImageGen
	if !sc.Enabled() {
		return nil, nil
	}

	client, err := imagegen.New(sc.BaseURL, s.httpOptions(sc.SourceConfig)...)
	if err != nil {
		return nil, fmt.Errorf("queue source: %w", err)
	}

	cfg := s.pollConfig(sc.Interval, sc.Timeout)
	fetcher := source.Map(client, normalize.Queue)
	opts := feedOptions[[]models.QueueItem](s, normalize.MergeQueue)

	var feed poller.Feed[[]models.QueueItem]

	if sc.StreamURL != "" {
		decode := func(data []byte) ([]models.QueueItem, error) {
			qs, err := imagegen.DecodeQueueState(data)
			if err != nil {
				return nil, err
			}

			return normalize.Queue(qs), nil
		}

		feed = poller.NewStream[[]models.QueueItem](client.Name(), sc.StreamURL, decode, fetcher, cfg, opts...)
	} else {
		feed = poller.New(fetcher, cfg, opts...)
	}

	staleAfter := register(s, feed, cfg.Interval, true)

	return panel.NewQueuePanel(feed, client, staleAfter), nil
}

// nodesFeed merges the metrics engine with the dashboard host's own sample.
// With the metrics engine disabled the host alone feeds the panel.
func (s *Server) nodesFeed() (poller.Feed[models.ClusterSnapshot], time.Duration, error) {
	pc := s.config.Sources.Prometheus
	hc := s.config.Sources.Host

	if !pc.Enabled() && !hc.Enabled {
		return nil, 0, nil
	}

	var (
		metricsClient *prom.Client
		host          *hostinfo.Collector
		name          string
		cfg           poller.Config
	)

	if pc.Enabled() {
		c, err := prom.New(pc.BaseURL, pc.Queries, s.httpOptions(pc.SourceConfig)...)
		if err != nil {
			return nil, 0, fmt.Errorf("metrics source: %w", err)
		}

		metricsClient = c
		name = c.Name()
		cfg = s.pollConfig(pc.Interval, pc.Timeout)
	}

	if hc.Enabled {
		host = hostinfo.New(hc.NodeID, hc.Role)

		if metricsClient == nil {
			name = host.Name()
			cfg = s.pollConfig(hc.Interval, 0)
		}
	}

	labels := normalize.NodeLabels{Node: pc.NodeLabel, GPUNode: pc.GPUNodeLabel, Role: pc.RoleLabel}
	hostLogger := s.logger.Named("host")

	fetcher := source.FetchFunc[models.ClusterSnapshot]{
		SourceName: name,
		Fn: func(ctx context.Context) (models.ClusterSnapshot, error) {
			var snap models.ClusterSnapshot

			if metricsClient != nil {
				native, err := metricsClient.Fetch(ctx)
				if err != nil {
					return snap, err
				}

				snap = normalize.Nodes(native, labels)
			}

			if host == nil {
				return snap, nil
			}

			sample, err := host.Fetch(ctx)
			if err != nil {
				if metricsClient == nil {
					return snap, err
				}

				hostLogger.Warn("Host sample failed", zap.Error(err))

				return snap, nil
			}

			if n, ok := normalize.Host(sample); ok {
				snap = normalize.WithNode(snap, n)
			}

			if snap.Timestamp.IsZero() {
				snap.Timestamp = sample.CollectedAt
			}

			return snap, nil
		},
	}

	feed := poller.New[models.ClusterSnapshot](fetcher, cfg, feedOptions[models.ClusterSnapshot](s, nil)...)

	return feed, register[models.ClusterSnapshot](s, feed, cfg.Interval, true), nil
}

func (s *Server) servicesFeed() (poller.Feed[[]models.ServiceEntity], time.Duration) {
	pc := s.config.Sources.Probes
	if len(pc.Services) == 0 {
		return nil, 0
	}

	targets := make([]probe.Target, 0, len(pc.Services))
	for _, t := range pc.Services {
		targets = append(targets, probe.Target{ID: t.ID, Name: t.Name, Category: t.Category, URL: t.URL})
	}

	cfg := s.pollConfig(pc.Interval, pc.Timeout)
	prober := probe.New(targets, probe.WithTimeout(cfg.Timeout))
	feed := poller.New(source.Map[[]probe.Result](prober, normalize.Services), cfg,
		feedOptions[[]models.ServiceEntity](s, nil)...)

	return feed, register[[]models.ServiceEntity](s, feed, cfg.Interval, true)
}

func (s *Server) alertsPanel() (panel.Panel, error) {
	sc := s.config.Sources.Alertmanager
	if !sc.Enabled() {
		return nil, nil
	}

	client, err := alertmanager.New(sc.BaseURL, s.httpOptions(sc)...)
	if err != nil {
		return nil, fmt.Errorf("alert source: %w", err)
	}

	cfg := s.pollConfig(sc.Interval, sc.Timeout)
	feed := poller.New(source.Map(client, func(p alertmanager.Payload) models.AlertSet {
		return normalize.Alerts(p, time.Now())
	}), cfg, feedOptions[models.AlertSet](s, normalize.MergeAlerts)...)
	staleAfter := register[models.AlertSet](s, feed, cfg.Interval, true)

	return panel.NewAlertsPanel(feed, staleAfter), nil
}

// activityPanel reads the audit log back from the store. It is internal, so
// the watcher and fetch metrics leave it out.
func (s *Server) activityPanel() panel.Panel {
	sc := s.config.Sources.Activity
	cfg := s.pollConfig(sc.Interval, sc.Timeout)

	fetcher := source.FetchFunc[[]models.ActivityEvent]{
		SourceName: "activity",
		Fn: func(ctx context.Context) ([]models.ActivityEvent, error) {
			return s.db.RecentActivity(ctx, time.Now().Add(-activityWindow), activityLimit)
		},
	}

	feed := poller.New[[]models.ActivityEvent](fetcher, cfg,
		poller.WithLogger[[]models.ActivityEvent](s.logger.Named("poller")))
	staleAfter := register[[]models.ActivityEvent](s, feed, cfg.Interval, false)

	return panel.NewActivityPanel(feed, activityWindow, activityBuckets, staleAfter)
}
