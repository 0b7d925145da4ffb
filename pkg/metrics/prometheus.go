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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opsdeck"

// Collectors are the service's own Prometheus metrics.
type Collectors struct {
	fetchDuration *prometheus.HistogramVec
	fetchTotal    *prometheus.CounterVec
	sourceUp      *prometheus.GaugeVec
	actionsTotal  *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

// NewCollectors registers the collectors with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of source fetches",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"source", "outcome"}),
		fetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Source fetches by outcome",
		}, []string{"source", "outcome"}),
		sourceUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_up",
			Help:      "1 when the last fetch of the source succeeded",
		}, []string{"source"}),
		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panel_actions_total",
			Help:      "Dispatched panel actions by outcome",
		}, []string{"panel", "kind", "outcome"}),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live page clients",
		}),
	}
}

// ObserveFetch records one fetch.
func (c *Collectors) ObserveFetch(sourceName, outcome string, latency time.Duration) {
	c.fetchDuration.WithLabelValues(sourceName, outcome).Observe(latency.Seconds())
	c.fetchTotal.WithLabelValues(sourceName, outcome).Inc()
}

// SetSourceUp sets the health gauge of a source.
func (c *Collectors) SetSourceUp(sourceName string, up bool) {
	v := 0.0
	if up {
		v = 1
	}

	c.sourceUp.WithLabelValues(sourceName).Set(v)
}

// ObserveAction counts one dispatched action.
func (c *Collectors) ObserveAction(panel, kind, outcome string) {
	c.actionsTotal.WithLabelValues(panel, kind, outcome).Inc()
}

// AddWebsocketClients moves the connected client gauge by delta.
func (c *Collectors) AddWebsocketClients(delta int) {
	c.wsClients.Add(float64(delta))
}
