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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfreeman451/opsdeck/pkg/alerts"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/source"
	"github.com/mfreeman451/opsdeck/pkg/source/fixture"
)

var (
	epoch   = fixture.Epoch
	errDisk = errors.New("disk full")
)

type scripted struct {
	name   string
	states []SourceHealth
	i      int
}

func (s *scripted) Health(time.Time) SourceHealth {
	h := s.states[min(s.i, len(s.states)-1)]
	h.Name = s.name
	s.i++

	return h
}

type events struct {
	mu   sync.Mutex
	list []models.ActivityEvent
	err  error
}

func (e *events) RecordActivity(_ context.Context, ev models.ActivityEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return e.err
	}

	e.list = append(e.list, ev)

	return nil
}

func (e *events) RecentActivity(context.Context, time.Time, int) ([]models.ActivityEvent, error) {
	return e.list, nil
}

type sink map[string]bool

func (s sink) SetSource(name string, healthy bool) {
	s[name] = healthy
}

var (
	up      = SourceHealth{Known: true, Healthy: true, LastSuccess: epoch}
	down    = SourceHealth{Known: true, Err: source.NewError("x", source.KindHTTP, errors.New("bad gateway"))}
	pending = SourceHealth{}
)

func TestWatcher_Transitions(t *testing.T) {
	ctrl := gomock.NewController(t)

	alerter := alerts.NewMockAlertService(ctrl)
	alerter.EXPECT().IsEnabled().Return(true).AnyTimes()

	var sent []*alerts.WebhookAlert

	alerter.EXPECT().Alert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *alerts.WebhookAlert) error {
			sent = append(sent, a)
			return nil
		}).Times(2)

	store := &events{}
	health := sink{}
	src := &scripted{name: "prometheus", states: []SourceHealth{pending, up, up, down, down, up}}

	w := NewWatcher(time.Second, []HealthProvider{src},
		WithActivity(store),
		WithAlerter(alerter),
		WithStatusSink(health),
		WithClock(func() time.Time { return epoch }))
	w.hostname = func() string { return "test-host" }

	ctx := context.Background()

	// pending: nothing known yet
	require.NoError(t, w.Check(ctx))
	_, known := w.Healthy("prometheus")
	assert.False(t, known)
	assert.Empty(t, health)

	// first healthy observation is the silent baseline
	require.NoError(t, w.Check(ctx))
	require.NoError(t, w.Check(ctx))
	assert.True(t, health["prometheus"])
	assert.Empty(t, store.list)

	require.NoError(t, w.Check(ctx))
	require.NoError(t, w.Check(ctx))
	assert.False(t, health["prometheus"])

	require.NoError(t, w.Check(ctx))
	assert.True(t, health["prometheus"])

	require.Len(t, store.list, 2)
	assert.Equal(t, ActionSourceDown, store.list[0].Action)
	assert.Equal(t, models.OutcomeFailure, store.list[0].Outcome)
	assert.Equal(t, models.ActorSystem, store.list[0].ActorKind)
	assert.Equal(t, "prometheus", store.list[0].TargetID)
	assert.Equal(t, ActionSourceRecovered, store.list[1].Action)

	require.Len(t, sent, 2)
	assert.Equal(t, alerts.Error, sent[0].Level)
	assert.Equal(t, "Source Down: prometheus", sent[0].Title)
	assert.Equal(t, "http_error", sent[0].Details["error_kind"])
	assert.Equal(t, "test-host", sent[0].Details["hostname"])
	assert.Equal(t, alerts.Info, sent[1].Level)
	assert.Equal(t, "prometheus", sent[1].Source)
}

func TestWatcher_FailingAtStartIsReported(t *testing.T) {
	store := &events{}
	w := NewWatcher(time.Second, []HealthProvider{&scripted{name: "n8n", states: []SourceHealth{down}}},
		WithActivity(store))

	require.NoError(t, w.Check(context.Background()))
	require.Len(t, store.list, 1)
	assert.Equal(t, ActionSourceDown, store.list[0].Action)
}

func TestWatcher_AlertErrors(t *testing.T) {
	tests := []struct {
		name      string
		alertErr  error
		expectErr string
	}{
		{name: "cooldown_is_not_an_error", alertErr: alerts.ErrWebhookCooldown},
		{name: "delivery_failure", alertErr: errDisk, expectErr: "send alert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			alerter := alerts.NewMockAlertService(ctrl)
			alerter.EXPECT().IsEnabled().Return(true)
			alerter.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(tt.alertErr)

			w := NewWatcher(time.Second, []HealthProvider{&scripted{name: "n8n", states: []SourceHealth{down}}},
				WithAlerter(alerter))

			err := w.Check(context.Background())
			if tt.expectErr == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorContains(t, err, tt.expectErr)
		})
	}
}

func TestWatcher_ActivityFailureSkipsAlert(t *testing.T) {
	ctrl := gomock.NewController(t)

	// no Alert call expected
	alerter := alerts.NewMockAlertService(ctrl)

	w := NewWatcher(time.Second, []HealthProvider{&scripted{name: "n8n", states: []SourceHealth{down}}},
		WithActivity(&events{err: errDisk}),
		WithAlerter(alerter))

	err := w.Check(context.Background())
	require.ErrorIs(t, err, errDisk)
	assert.ErrorContains(t, err, "record activity")
}

func TestWatcher_DisabledAlerter(t *testing.T) {
	ctrl := gomock.NewController(t)

	alerter := alerts.NewMockAlertService(ctrl)
	alerter.EXPECT().IsEnabled().Return(false)

	w := NewWatcher(time.Second, []HealthProvider{&scripted{name: "n8n", states: []SourceHealth{down}}},
		WithAlerter(alerter))

	assert.NoError(t, w.Check(context.Background()))
}

func TestFromFeed(t *testing.T) {
	clock := epoch
	fetcher := fixture.NewScripted("alertmanager",
		fixture.Step[int]{Value: 1},
		fixture.Step[int]{Err: fixture.Unreachable("alertmanager")},
	)
	p := poller.New[int](fetcher, poller.Config{Interval: time.Minute},
		poller.WithClock[int](func() time.Time { return clock }))

	h := FromFeed[int](p, 3*time.Minute)

	assert.False(t, h.Health(clock).Known)

	p.Refresh(context.Background())

	got := h.Health(clock)
	assert.True(t, got.Known)
	assert.True(t, got.Healthy)
	assert.Equal(t, "alertmanager", got.Name)

	// no new fetch for longer than the threshold
	got = h.Health(clock.Add(4 * time.Minute))
	assert.False(t, got.Healthy)
	assert.True(t, got.Stale)

	p.Refresh(context.Background())

	got = h.Health(clock)
	assert.False(t, got.Healthy)
	require.NotNil(t, got.Err)
	assert.Equal(t, source.KindUnreachable, got.Err.Kind)
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	m := NewMonitor(MonitorConfig{Interval: time.Hour}, nil)
	calls := 0
	done := make(chan struct{})

	go func() {
		m.StartMonitoring(context.Background(), func(context.Context) error {
			calls++
			return nil
		})
		close(done)
	}()

	m.Stop(context.Background())
	m.Stop(context.Background())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}

	assert.Equal(t, 1, calls)
}
