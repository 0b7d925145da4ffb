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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/mfreeman451/opsdeck/pkg/alerts"
	"github.com/mfreeman451/opsdeck/pkg/api"
	"github.com/mfreeman451/opsdeck/pkg/config"
	"github.com/mfreeman451/opsdeck/pkg/db"
	"github.com/mfreeman451/opsdeck/pkg/graph"
	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/monitoring"
	"github.com/mfreeman451/opsdeck/pkg/panel"
	"github.com/mfreeman451/opsdeck/pkg/view"
)

const (
	activityWindow   = 24 * time.Hour
	activityBuckets  = 24
	activityLimit    = 500
	cleanupInterval  = time.Hour
	staleSourceAfter = 24 * time.Hour
	watchInterval    = 15 * time.Second
	defaultRetention = 7 * 24 * time.Hour
	defaultInterval  = 10 * time.Second
	defaultTimeout   = 5 * time.Second
)

// feedHandle is the type-erased view of one feed the server manages.
type feedHandle struct {
	name    string
	start   func(context.Context) error
	stop    func()
	refresh func(context.Context)
	// subscribe registers fn to run after every settled fetch.
	subscribe func(fn func()) func()
	health    monitoring.HealthProvider
	// monitored feeds are reported by the watcher.
	monitored bool
}

// Server owns every long-lived component of the dashboard.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	db         db.Service
	registry   *prometheus.Registry
	collectors *metrics.Collectors
	metrics    *metrics.Manager
	alerter    alerts.AlertService
	feeds      []feedHandle
	edges      *graph.EdgeStore
	panels     *panel.Registry
	composer   *view.Composer
	dispatcher *panel.Dispatcher
	api        *api.APIServer
	health     *health.Server
	watcher    *monitoring.Watcher

	skipRuntime bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	unsubs  []func()
}
