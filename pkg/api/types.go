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

package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/panel"
	"github.com/mfreeman451/opsdeck/pkg/view"
)

var (
	errNoEmbedPanel   = errors.New("panel does not accept frame reports")
	errInvalidRequest = errors.New("invalid request body")
	errInvalidSince   = errors.New("invalid since parameter")
	errInvalidLimit   = errors.New("invalid limit parameter")
)

const (
	graphPanelID         = "graph"
	defaultActivitySince = 24 * time.Hour
	defaultActivityLimit = 100
	maxActivityLimit     = 1000
	maxBodyBytes         = 1 << 20
)

// PanelInfo describes a registered panel.
type PanelInfo struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Actions []string `json:"actions,omitempty"`
}

// SourceStatus is the fetch history of one source.
type SourceStatus struct {
	Name    string               `json:"name"`
	Last    *models.MetricPoint  `json:"last,omitempty"`
	Metrics []models.MetricPoint `json:"metrics,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// frameReporter is implemented by panels that wrap an external frame.
type frameReporter interface {
	Report(panel.FrameReport)
}

// APIServer serves the dashboard pages, panels and actions over HTTP.
type APIServer struct {
	mu         sync.RWMutex
	router     *mux.Router
	server     *http.Server
	cancel     context.CancelFunc
	stopped    bool
	composer   *view.Composer
	registry   *panel.Registry
	dispatcher *panel.Dispatcher
	metrics    SourceMetrics
	activity   ActivityReader
	gatherer   prometheus.Gatherer
	collectors *metrics.Collectors
	hub        *Hub
	logger     *zap.Logger
	now        func() time.Time
}
