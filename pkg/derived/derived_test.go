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

package derived

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestHealthBand(t *testing.T) {
	tests := []struct {
		score float64
		band  Band
		color string
	}{
		{100, BandGood, ColorGood},
		{90, BandGood, ColorGood},
		{89.99, BandDegraded, ColorDegraded},
		{70, BandDegraded, ColorDegraded},
		{69.99, BandCritical, ColorCritical},
		{0, BandCritical, ColorCritical},
		{-5, BandCritical, ColorCritical},
		{250, BandGood, ColorGood},
		{math.NaN(), BandCritical, ColorCritical},
	}

	for _, tt := range tests {
		got := HealthBand(tt.score)
		assert.Equal(t, tt.band, got.Band, "score %v", tt.score)
		assert.Equal(t, tt.color, got.Color, "score %v", tt.score)
		assert.GreaterOrEqual(t, got.Score, 0.0)
		assert.LessOrEqual(t, got.Score, 100.0)
	}
}

func TestHealthBandCustomThresholds(t *testing.T) {
	th := Thresholds{Good: 99, Degraded: 95}

	assert.Equal(t, BandDegraded, th.HealthBand(97).Band)
	assert.Equal(t, BandCritical, th.HealthBand(90).Band)
}

func TestRelativeTimeBoundaries(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{60 * time.Second, "1m ago"},
		{59 * time.Minute, "59m ago"},
		{60 * time.Minute, "1h ago"},
		{23*time.Hour + 59*time.Minute, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{10 * 24 * time.Hour, "10d ago"},
		{-time.Hour, "just now"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now), "ago %v", tt.ago)
	}
}

func events(ages ...time.Duration) []models.ActivityEvent {
	out := make([]models.ActivityEvent, len(ages))
	for i, a := range ages {
		out[i] = models.ActivityEvent{Timestamp: now.Add(-a), ActorKind: models.ActorUser, Action: "trigger"}
	}

	return out
}

func TestSparklineCountsEveryEventInWindow(t *testing.T) {
	evs := events(0, time.Minute, 5*time.Minute, 6*time.Minute, 61*time.Minute, 2*time.Hour)

	s := BuildSparkline(evs, now, 2*time.Hour, 24)

	require.Len(t, s.Counts, 24)
	assert.Equal(t, 5*time.Minute, s.BucketWidth)

	sum := 0
	for _, c := range s.Counts {
		sum += c
	}

	assert.Equal(t, len(evs), sum)
	assert.Equal(t, len(evs), s.Total)

	// newest bucket is last: ages 0 and 1m
	assert.Equal(t, 2, s.Counts[23])
	// 5m and 6m share the second newest
	assert.Equal(t, 2, s.Counts[22])
	// exactly at the window edge lands in the oldest bucket
	assert.Equal(t, 1, s.Counts[0])
	assert.InDelta(t, 100, s.Heights[23], 1e-9)
	assert.InDelta(t, 50, s.Heights[0], 1e-9)
}

func TestSparklineDropsOldEvents(t *testing.T) {
	s := BuildSparkline(events(2*time.Hour+time.Second, 5*time.Hour), now, 2*time.Hour, 24)

	assert.Equal(t, 0, s.Total)

	for i := range s.Counts {
		assert.Zero(t, s.Counts[i])
		assert.Zero(t, s.Heights[i])
	}
}

func TestSparklineEmptyAndDefaults(t *testing.T) {
	s := BuildSparkline(nil, now, 0, 0)

	assert.Len(t, s.Counts, DefaultSparklineBuckets)
	assert.Equal(t, DefaultSparklineWindow, s.Window)

	for _, h := range s.Heights {
		assert.Zero(t, h)
		assert.False(t, math.IsNaN(h))
	}
}

func TestSparklineFutureEventsAreNewest(t *testing.T) {
	s := BuildSparkline(events(-10*time.Minute), now, time.Hour, 6)

	assert.Equal(t, 1, s.Counts[5])
}

func TestRecentEvents(t *testing.T) {
	got := RecentEvents(events(time.Minute, 3*time.Hour), now, time.Hour)

	require.Len(t, got, 1)
	assert.Equal(t, now.Add(-time.Minute), got[0].Timestamp)
}

func TestScales(t *testing.T) {
	assert.Equal(t, ColorCool, GPUTempScale.Color(40))
	assert.Equal(t, ColorGood, GPUTempScale.Color(60))
	assert.Equal(t, ColorDegraded, GPUTempScale.Color(80))
	assert.Equal(t, ColorCritical, GPUTempScale.Color(91))
	assert.Equal(t, "saturated", UtilizationScale.Pick(97).Label)
	assert.Equal(t, ColorNeutral, PressureScale.Color(math.NaN()))
	assert.Equal(t, ColorNeutral, Scale{}.Color(10))
	assert.Equal(t, ColorNeutral, Scale{{Min: 50, Color: ColorGood}}.Color(10))
}

func TestAverageGPUTemp(t *testing.T) {
	_, ok := AverageGPUTemp(nil)
	assert.False(t, ok)

	avg, ok := AverageGPUTemp([]models.GpuStatus{{TempC: 60}, {TempC: 70}})
	require.True(t, ok)
	assert.InDelta(t, 65, avg, 1e-9)
}

func TestHealthScores(t *testing.T) {
	assert.Zero(t, HealthScore(0, 0))
	assert.InDelta(t, 100, HealthScore(5, 3), 1e-9)
	assert.Zero(t, HealthScore(-1, 3))

	nodes := []models.NodeStatus{
		{ID: "a", State: models.NodeOnline},
		{ID: "b", State: models.NodeOffline},
		{ID: "c", State: models.NodeUnknown},
	}
	assert.InDelta(t, 50, NodeHealthScore(nodes), 1e-9)

	services := []models.ServiceEntity{
		{ID: "a", State: models.ServiceUp},
		{ID: "b", State: models.ServiceUp},
		{ID: "c", State: models.ServiceUp},
		{ID: "d", State: models.ServiceDown},
	}
	assert.InDelta(t, 75, ServiceHealthScore(services), 1e-9)
}

func TestSummarizeAlerts(t *testing.T) {
	alerts := []models.AlertRecord{
		{Fingerprint: "1", Status: models.AlertFiring, Severity: "critical", StartedAt: now.Add(-time.Hour)},
		{Fingerprint: "2", Status: models.AlertFiring, Severity: "critical", StartedAt: now.Add(-2 * time.Hour)},
		{Fingerprint: "3", Status: models.AlertFiring, StartedAt: now},
		{Fingerprint: "4", Status: models.AlertFiring, Severity: "critical", Silenced: true, StartedAt: now.Add(-5 * time.Hour)},
		{Fingerprint: "5", Status: models.AlertResolved, Severity: "warning"},
	}

	s := SummarizeAlerts(alerts)

	assert.Equal(t, 3, s.Firing)
	assert.Equal(t, 1, s.Silenced)
	assert.Equal(t, 1, s.Resolved)
	assert.Equal(t, map[string]int{"critical": 2, "none": 1}, s.BySeverity)
	assert.Equal(t, []string{"critical", "none"}, s.Severities())
	require.NotNil(t, s.Oldest)
	assert.Equal(t, now.Add(-2*time.Hour), *s.Oldest)
}
