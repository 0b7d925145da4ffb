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
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source"
)

var errTooManySources = errors.New("source limit reached")

type sourceMetrics struct {
	buffer   MetricStore
	lastSeen atomic.Int64
}

// Manager keeps fetch latency history per source and mirrors every sample
// into the Prometheus collectors.
type Manager struct {
	sources       sync.Map // source name -> *sourceMetrics
	config        models.MetricsConfig
	activeSources int64
	collectors    *Collectors
	logger        *zap.Logger
	now           func() time.Time
}

// NewManager creates a manager. collectors may be nil.
func NewManager(cfg models.MetricsConfig, collectors *Collectors, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		config:     cfg,
		collectors: collectors,
		logger:     logger,
		now:        time.Now,
	}
}

// AddMetric records one sample for sourceName.
func (m *Manager) AddMetric(sourceName string, timestamp time.Time, responseTime int64, outcome string) error {
	if !m.config.Enabled {
		return nil
	}

	v, ok := m.sources.Load(sourceName)
	if !ok {
		if m.config.MaxNodes > 0 && atomic.LoadInt64(&m.activeSources) >= int64(m.config.MaxNodes) {
			return errTooManySources
		}

		var loaded bool

		v, loaded = m.sources.LoadOrStore(sourceName, &sourceMetrics{buffer: NewBuffer(m.config.Retention)})
		if !loaded {
			atomic.AddInt64(&m.activeSources, 1)
		}
	}

	sm := v.(*sourceMetrics)
	sm.buffer.Add(timestamp, responseTime, outcome)
	sm.lastSeen.Store(timestamp.UnixNano())

	return nil
}

// GetMetrics returns the samples of sourceName, newest first.
func (m *Manager) GetMetrics(sourceName string) []models.MetricPoint {
	v, ok := m.sources.Load(sourceName)
	if !ok {
		return nil
	}

	return v.(*sourceMetrics).buffer.GetPoints()
}

// LastPoint returns the newest sample of sourceName.
func (m *Manager) LastPoint(sourceName string) *models.MetricPoint {
	v, ok := m.sources.Load(sourceName)
	if !ok {
		return nil
	}

	return v.(*sourceMetrics).buffer.GetLastPoint()
}

// Sources lists the tracked source names, sorted.
func (m *Manager) Sources() []string {
	var names []string

	m.sources.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})

	sort.Strings(names)

	return names
}

func (m *Manager) GetActiveSources() int64 {
	return atomic.LoadInt64(&m.activeSources)
}

// CleanupStaleSources forgets sources without a sample for staleDuration.
func (m *Manager) CleanupStaleSources(staleDuration time.Duration) {
	cutoff := m.now().Add(-staleDuration).UnixNano()

	m.sources.Range(func(k, v any) bool {
		if v.(*sourceMetrics).lastSeen.Load() < cutoff {
			m.sources.Delete(k)
			atomic.AddInt64(&m.activeSources, -1)
			m.logger.Debug("Dropped stale source metrics", zap.String("source", k.(string)))
		}

		return true
	})
}

// RecordFetch implements poller.FetchRecorder.
func (m *Manager) RecordFetch(sourceName string, latency time.Duration, err error) {
	outcome := models.OutcomeSuccess
	if err != nil {
		outcome = string(source.KindOf(err))
		if outcome == "" {
			outcome = models.OutcomeFailure
		}
	}

	if m.collectors != nil {
		m.collectors.ObserveFetch(sourceName, outcome, latency)
	}

	if addErr := m.AddMetric(sourceName, m.now(), latency.Milliseconds(), outcome); addErr != nil {
		m.logger.Warn("Dropping fetch sample", zap.String("source", sourceName), zap.Error(addErr))
	}
}
