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

package config

import (
	"time"

	"github.com/mfreeman451/opsdeck/pkg/alerts"
	"github.com/mfreeman451/opsdeck/pkg/graph"
	"github.com/mfreeman451/opsdeck/pkg/models"
)

const (
	defaultListenAddr = ":8090"
	defaultGRPCAddr   = ":50090"
	defaultDBPath     = "./opsdeck.db"

	defaultQueueInterval    = 5 * time.Second
	defaultMetricsInterval  = 10 * time.Second
	defaultWorkflowInterval = 30 * time.Second
	defaultFetchTimeout     = 5 * time.Second
	defaultStalenessFactor  = 3
	defaultRetention        = 7 * 24 * time.Hour
)

// Config is the opsdeck service configuration.
type Config struct {
	ListenAddr      string                 `json:"listen_addr" yaml:"listen_addr" validate:"required"`
	GRPCAddr        string                 `json:"grpc_addr" yaml:"grpc_addr"`
	DBPath          string                 `json:"db_path" yaml:"db_path" validate:"required"`
	Logging         LoggingConfig          `json:"logging" yaml:"logging"`
	FetchTimeout    Duration               `json:"fetch_timeout" yaml:"fetch_timeout"`
	StalenessFactor int                    `json:"staleness_factor" yaml:"staleness_factor" validate:"gte=1"`
	Retention       Duration               `json:"retention" yaml:"retention"`
	Metrics         models.MetricsConfig   `json:"metrics" yaml:"metrics"`
	Health          HealthConfig           `json:"health" yaml:"health"`
	Actions         ActionConfig           `json:"actions" yaml:"actions"`
	Sources         SourcesConfig          `json:"sources" yaml:"sources"`
	Graph           GraphConfig            `json:"graph" yaml:"graph"`
	Webhooks        []alerts.WebhookConfig `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
}

// LoggingConfig selects the zap logger flavour.
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `json:"development" yaml:"development"`
	File        string `json:"file,omitempty" yaml:"file,omitempty"`
}

// HealthConfig holds the health banding thresholds.
type HealthConfig struct {
	Good     float64 `json:"good" yaml:"good" validate:"gte=0,lte=100"`
	Degraded float64 `json:"degraded" yaml:"degraded" validate:"gte=0,lte=100,ltefield=Good"`
}

// ActionConfig limits write actions per panel.
type ActionConfig struct {
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second" validate:"gt=0"`
	Burst         int     `json:"burst" yaml:"burst" validate:"gte=1"`
}

// SourceConfig is shared by every HTTP backend.
type SourceConfig struct {
	BaseURL  string            `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Disabled bool              `json:"disabled" yaml:"disabled"`
	Interval Duration          `json:"interval" yaml:"interval"`
	Timeout  Duration          `json:"timeout" yaml:"timeout"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Enabled reports whether the source should be polled.
func (s SourceConfig) Enabled() bool {
	return !s.Disabled && s.BaseURL != ""
}

// SourcesConfig lists every backend the dashboard aggregates.
type SourcesConfig struct {
	Prometheus    PrometheusConfig `json:"prometheus" yaml:"prometheus"`
	Alertmanager  SourceConfig     `json:"alertmanager" yaml:"alertmanager"`
	N8N           N8NConfig        `json:"n8n" yaml:"n8n"`
	HomeAssistant HomeConfig       `json:"home_assistant" yaml:"home_assistant"`
	ImageGen      ImageGenConfig   `json:"image_gen" yaml:"image_gen"`
	Probes        ProbeConfig      `json:"probes" yaml:"probes"`
	Host          HostConfig       `json:"host" yaml:"host"`
	Grafana       GrafanaConfig    `json:"grafana" yaml:"grafana"`
	Activity      SourceConfig     `json:"activity" yaml:"activity"`
}

// PrometheusConfig configures the metrics engine queries.
type PrometheusConfig struct {
	SourceConfig `yaml:",inline"`
	NodeLabel    string            `json:"node_label" yaml:"node_label"`
	GPUNodeLabel string            `json:"gpu_node_label" yaml:"gpu_node_label"`
	RoleLabel    string            `json:"role_label" yaml:"role_label"`
	Queries      map[string]string `json:"queries,omitempty" yaml:"queries,omitempty"`
}

// N8NConfig configures the workflow engine.
type N8NConfig struct {
	SourceConfig   `yaml:",inline"`
	ExecutionLimit int                         `json:"execution_limit" yaml:"execution_limit" validate:"gte=0"`
	Workflows      []models.WorkflowDefinition `json:"workflows" yaml:"workflows" validate:"dive"`
}

// HomeConfig configures the home automation hub.
type HomeConfig struct {
	SourceConfig `yaml:",inline"`
	Domains      []string `json:"domains" yaml:"domains"`
}

// ImageGenConfig configures the image generation queue.
type ImageGenConfig struct {
	SourceConfig `yaml:",inline"`
	StreamURL    string `json:"stream_url" yaml:"stream_url" validate:"omitempty,url"`
}

// ServiceTarget is one service health endpoint.
type ServiceTarget struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	URL      string `json:"url" yaml:"url" validate:"required,url"`
}

// ProbeConfig configures the service inventory and inference server probes.
type ProbeConfig struct {
	Interval Duration        `json:"interval" yaml:"interval"`
	Timeout  Duration        `json:"timeout" yaml:"timeout"`
	Services []ServiceTarget `json:"services" yaml:"services" validate:"dive"`
}

// HostConfig controls reporting the dashboard host as a node.
type HostConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	NodeID   string   `json:"node_id" yaml:"node_id"`
	Role     string   `json:"role" yaml:"role"`
	Interval Duration `json:"interval" yaml:"interval"`
}

// GrafanaConfig describes the embedded dashboard frame.
type GrafanaConfig struct {
	BaseURL     string            `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	DashboardID string            `json:"dashboard_id" yaml:"dashboard_id"`
	From        string            `json:"from" yaml:"from"`
	To          string            `json:"to" yaml:"to"`
	Theme       string            `json:"theme" yaml:"theme" validate:"omitempty,oneof=light dark"`
	Kiosk       bool              `json:"kiosk" yaml:"kiosk"`
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// GraphConfig configures the relationship graph.
type GraphConfig struct {
	EdgesFile  string                             `json:"edges_file" yaml:"edges_file"`
	Edges      []models.DependencyEdge            `json:"edges,omitempty" yaml:"edges,omitempty"`
	Categories map[string]graph.CategoryPlacement `json:"categories,omitempty" yaml:"categories,omitempty"`
	Spread     float64                            `json:"spread" yaml:"spread" validate:"gte=0"`
	Radius     float64                            `json:"radius" yaml:"radius" validate:"gte=0"`
}

// Layout converts the graph configuration into layout parameters.
func (g GraphConfig) Layout() graph.Layout {
	l := graph.DefaultLayout()

	if g.Spread > 0 {
		l.Spread = g.Spread
	}

	if g.Radius > 0 {
		l.Radius = g.Radius
	}

	for name, placement := range g.Categories {
		l.Categories[name] = placement
	}

	return l
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      defaultListenAddr,
		GRPCAddr:        defaultGRPCAddr,
		DBPath:          defaultDBPath,
		Logging:         LoggingConfig{Level: "info"},
		FetchTimeout:    Duration(defaultFetchTimeout),
		StalenessFactor: defaultStalenessFactor,
		Retention:       Duration(defaultRetention),
		Metrics:         models.MetricsConfig{Enabled: true, Retention: 100, MaxNodes: 64},
		Health:          HealthConfig{Good: 90, Degraded: 70},
		Actions:         ActionConfig{RatePerSecond: 2, Burst: 4},
		Sources: SourcesConfig{
			Prometheus: PrometheusConfig{
				SourceConfig: SourceConfig{BaseURL: "http://localhost:9090", Interval: Duration(defaultMetricsInterval)},
				NodeLabel:    "instance",
				GPUNodeLabel: "Hostname",
				RoleLabel:    "role",
			},
			Alertmanager: SourceConfig{BaseURL: "http://localhost:9093", Interval: Duration(defaultMetricsInterval)},
			N8N: N8NConfig{
				SourceConfig:   SourceConfig{BaseURL: "http://localhost:5678", Interval: Duration(defaultWorkflowInterval)},
				ExecutionLimit: 50,
			},
			HomeAssistant: HomeConfig{
				SourceConfig: SourceConfig{BaseURL: "http://localhost:8123", Interval: Duration(defaultMetricsInterval)},
				Domains:      []string{"light", "switch", "scene"},
			},
			ImageGen: ImageGenConfig{
				SourceConfig: SourceConfig{BaseURL: "http://localhost:8188", Interval: Duration(defaultQueueInterval)},
			},
			Probes: ProbeConfig{Interval: Duration(defaultMetricsInterval)},
			Host:   HostConfig{Enabled: true, Role: "control-plane", Interval: Duration(defaultMetricsInterval)},
			Grafana: GrafanaConfig{
				BaseURL: "http://localhost:3000",
				From:    "now-6h",
				To:      "now",
				Theme:   "dark",
				Kiosk:   true,
			},
			Activity: SourceConfig{Interval: Duration(defaultMetricsInterval)},
		},
	}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.StalenessFactor == 0 {
		c.StalenessFactor = defaultStalenessFactor
	}

	if c.Actions.RatePerSecond == 0 {
		c.Actions = ActionConfig{RatePerSecond: 2, Burst: 4}
	}

	return validateStruct(c)
}

// StaleAfter is how old a source's last success may be before it counts as stale.
func (c *Config) StaleAfter(interval time.Duration) time.Duration {
	return interval * time.Duration(c.StalenessFactor)
}
