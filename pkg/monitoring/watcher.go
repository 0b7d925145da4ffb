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

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/alerts"
	"github.com/mfreeman451/opsdeck/pkg/db"
	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/source"
)

const (
	defaultCheckInterval = 15 * time.Second

	ActionSourceDown      = "source.down"
	ActionSourceRecovered = "source.recovered"

	statusUnknown = "unknown"
)

// SourceHealth is one source's fetch health at a point in time.
type SourceHealth struct {
	Name        string
	Known       bool // false until the first fetch settles
	Healthy     bool
	Err         *source.Error
	Stale       bool
	LastSuccess time.Time
}

// HealthProvider reports the health of one source.
type HealthProvider interface {
	Health(now time.Time) SourceHealth
}

// StatusSink publishes per-source health, e.g. on the gRPC health service.
type StatusSink interface {
	SetSource(name string, healthy bool)
}

type feedHealth[T any] struct {
	feed       poller.Feed[T]
	staleAfter time.Duration
}

// FromFeed reports a feed as healthy while its last fetch succeeded and its
// value is not older than staleAfter.
func FromFeed[T any](feed poller.Feed[T], staleAfter time.Duration) HealthProvider {
	return feedHealth[T]{feed: feed, staleAfter: staleAfter}
}

func (f feedHealth[T]) Health(now time.Time) SourceHealth {
	st := f.feed.Snapshot()
	stale := st.Stale(now, f.staleAfter)

	return SourceHealth{
		Name:        f.feed.Name(),
		Known:       !st.AttemptedAt.IsZero(),
		Healthy:     st.Err == nil && !stale,
		Err:         st.Err,
		Stale:       stale,
		LastSuccess: st.UpdatedAt,
	}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

func WithActivity(store db.ActivityStore) WatcherOption {
	return func(w *Watcher) {
		w.activity = store
	}
}

func WithAlerter(a alerts.AlertService) WatcherOption {
	return func(w *Watcher) {
		w.alerter = a
	}
}

func WithStatusSink(s StatusSink) WatcherOption {
	return func(w *Watcher) {
		w.sink = s
	}
}

func WithCollectors(c *metrics.Collectors) WatcherOption {
	return func(w *Watcher) {
		w.collectors = c
	}
}

func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// Watcher detects sources moving between healthy and failing. Each
// transition is recorded as a system activity event and sent as a webhook
// alert; the current health of every source is mirrored to the status sink
// and the source_up gauge.
type Watcher struct {
	monitor    *Monitor
	sources    []HealthProvider
	activity   db.ActivityStore
	alerter    alerts.AlertService
	sink       StatusSink
	collectors *metrics.Collectors
	logger     *zap.Logger
	now        func() time.Time
	hostname   func() string

	mu      sync.Mutex
	healthy map[string]bool
}

// NewWatcher creates a watcher over sources checked every interval.
func NewWatcher(interval time.Duration, sources []HealthProvider, opts ...WatcherOption) *Watcher {
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	w := &Watcher{
		sources: sources,
		logger:  zap.NewNop(),
		now:     time.Now,
		healthy: make(map[string]bool),
		hostname: func() string {
			hostname, err := os.Hostname()
			if err != nil {
				return statusUnknown
			}

			return hostname
		},
	}

	for _, opt := range opts {
		opt(w)
	}

	w.monitor = NewMonitor(MonitorConfig{Interval: interval}, w.logger)

	return w
}

// Run checks until ctx is done or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	w.monitor.StartMonitoring(ctx, w.Check)
}

func (w *Watcher) Stop(ctx context.Context) {
	w.monitor.Stop(ctx)
}

// Healthy returns the last observed health of name.
func (w *Watcher) Healthy(name string) (healthy, known bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	healthy, known = w.healthy[name]

	return healthy, known
}

// Check observes every source once. A source that is healthy the first time
// it is seen sets the baseline silently; one that is failing is reported.
func (w *Watcher) Check(ctx context.Context) error {
	now := w.now()

	var errs []error

	for _, src := range w.sources {
		h := src.Health(now)
		if !h.Known {
			continue
		}

		if w.collectors != nil {
			w.collectors.SetSourceUp(h.Name, h.Healthy)
		}

		if w.sink != nil {
			w.sink.SetSource(h.Name, h.Healthy)
		}

		if !w.observe(h) {
			continue
		}

		if err := w.processTransition(ctx, h, now); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", h.Name, err))
		}
	}

	return errors.Join(errs...)
}

// observe stores h and reports whether it is a transition worth reporting.
func (w *Watcher) observe(h SourceHealth) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev, seen := w.healthy[h.Name]
	w.healthy[h.Name] = h.Healthy

	if !seen {
		return !h.Healthy
	}

	return prev != h.Healthy
}

func (w *Watcher) processTransition(ctx context.Context, h SourceHealth, now time.Time) error {
	action, outcome := ActionSourceRecovered, models.OutcomeSuccess
	if !h.Healthy {
		action, outcome = ActionSourceDown, models.OutcomeFailure
	}

	w.logger.Info("Source health changed",
		zap.String("source", h.Name),
		zap.Bool("healthy", h.Healthy),
		zap.Bool("stale", h.Stale))

	// Record the transition BEFORE trying to send the alert
	if w.activity != nil {
		err := w.activity.RecordActivity(ctx, models.ActivityEvent{
			Timestamp: now,
			ActorKind: models.ActorSystem,
			Action:    action,
			TargetID:  h.Name,
			Outcome:   outcome,
		})
		if err != nil {
			return fmt.Errorf("record activity: %w", err)
		}
	}

	if w.alerter == nil || !w.alerter.IsEnabled() {
		return nil
	}

	if err := w.alerter.Alert(ctx, w.buildAlert(h, now)); err != nil {
		// Only treat the cooldown as non-error
		if !alerts.IsCooldown(err) {
			return fmt.Errorf("send alert: %w", err)
		}

		w.logger.Debug("Source alert rate limited", zap.String("source", h.Name))
	}

	return nil
}

func (w *Watcher) buildAlert(h SourceHealth, now time.Time) *alerts.WebhookAlert {
	details := map[string]any{
		"hostname": w.hostname(),
	}

	if !h.LastSuccess.IsZero() {
		details["last_success"] = h.LastSuccess.UTC().Format(time.RFC3339)
	}

	alert := &alerts.WebhookAlert{
		Timestamp: now.UTC().Format(time.RFC3339),
		Source:    h.Name,
		Details:   details,
	}

	if h.Healthy {
		alert.Level = alerts.Info
		alert.Title = "Source Recovered: " + h.Name
		alert.Message = fmt.Sprintf("Source '%s' is responding again", h.Name)

		return alert
	}

	alert.Level = alerts.Error
	alert.Title = "Source Down: " + h.Name

	switch {
	case h.Err != nil:
		alert.Message = fmt.Sprintf("Source '%s' is failing: %s", h.Name, h.Err.Kind)
		details["error_kind"] = string(h.Err.Kind)

		if h.Err.StatusCode != 0 {
			details["status_code"] = h.Err.StatusCode
		}
	case h.Stale:
		alert.Message = fmt.Sprintf("Source '%s' has not updated since %s", h.Name, h.LastSuccess.UTC().Format(time.RFC3339))
	default:
		alert.Message = fmt.Sprintf("Source '%s' is failing", h.Name)
	}

	return alert
}
