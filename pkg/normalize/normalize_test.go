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

package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source/alertmanager"
	"github.com/mfreeman451/opsdeck/pkg/source/fixture"
	"github.com/mfreeman451/opsdeck/pkg/source/hostinfo"
	"github.com/mfreeman451/opsdeck/pkg/source/imagegen"
	"github.com/mfreeman451/opsdeck/pkg/source/n8n"
	"github.com/mfreeman451/opsdeck/pkg/source/probe"
	"github.com/mfreeman451/opsdeck/pkg/source/prom"
)

func nodeByID(t *testing.T, nodes []models.NodeStatus, id string) models.NodeStatus {
	t.Helper()

	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}

	t.Fatalf("node %q not found", id)

	return models.NodeStatus{}
}

func TestClusterEndToEnd(t *testing.T) {
	snap := Nodes(fixture.Cluster(), DefaultNodeLabels())

	require.Len(t, snap.Nodes, 3)
	require.Len(t, snap.GPUs, 2)
	assert.Equal(t, []string{"ctl-01", "gpu-01", "nas-01"},
		[]string{snap.Nodes[0].ID, snap.Nodes[1].ID, snap.Nodes[2].ID})

	gpuNode := nodeByID(t, snap.Nodes, "gpu-01")
	assert.Equal(t, models.NodeOnline, gpuNode.State)
	assert.Equal(t, "inference", gpuNode.Role)
	assert.Len(t, gpuNode.GPUs, 2)

	nas := nodeByID(t, snap.Nodes, "nas-01")
	assert.Equal(t, models.NodeOffline, nas.State)
	assert.Nil(t, nas.CPUPercent, "missing series stays absent")
	require.NotNil(t, nas.MemoryPercent)
	assert.InDelta(t, 100, *nas.MemoryPercent, 1e-9, "memory is clamped")
	assert.Empty(t, nas.GPUs)
	assert.Equal(t, defaultRole, nas.Role)

	g0 := snap.GPUs[0]
	assert.Equal(t, "RTX 4090", g0.Name)
	require.NotNil(t, g0.MemoryUsedGB)
	require.NotNil(t, g0.MemoryTotalGB)
	assert.InDelta(t, 20, *g0.MemoryUsedGB, 1e-9)
	assert.InDelta(t, 24, *g0.MemoryTotalGB, 1e-9)
	assert.LessOrEqual(t, *g0.MemoryUsedGB, *g0.MemoryTotalGB)

	g1 := snap.GPUs[1]
	assert.InDelta(t, 100, g1.UtilizationPercent, 1e-9)
	assert.Nil(t, g1.MemoryUsedGB)
	assert.Nil(t, g1.MemoryTotalGB)

	avg, ok := derived.AverageGPUTemp(snap.GPUs)
	require.True(t, ok)
	assert.InDelta(t, 65, avg, 1e-9)

	assert.Equal(t, derived.BandDegraded, derived.HealthBand(70).Band)
}

func TestPercentagesAlwaysClamped(t *testing.T) {
	inputs := []float64{-50, -0.1, 0, 55.5, 100, 100.1, 250, math.NaN(), math.Inf(1), math.Inf(-1)}

	for _, v := range inputs {
		snap := Nodes(fixture.NodeSnapshot(
			[]fixture.Node{{Instance: "n1:9100", Up: 1, CPU: v, Memory: v}},
			[]fixture.GPU{{Hostname: "n1", Index: 0, TempC: 50, Util: v, PowerW: v, UsedMiB: v, FreeMiB: v}},
		), DefaultNodeLabels())

		require.Len(t, snap.Nodes, 1)

		n := snap.Nodes[0]
		for _, p := range []*float64{n.CPUPercent, n.MemoryPercent} {
			if p != nil {
				assert.GreaterOrEqual(t, *p, 0.0, "input %v", v)
				assert.LessOrEqual(t, *p, 100.0, "input %v", v)
			}
		}

		require.Len(t, snap.GPUs, 1)

		g := snap.GPUs[0]
		assert.GreaterOrEqual(t, g.UtilizationPercent, 0.0)
		assert.LessOrEqual(t, g.UtilizationPercent, 100.0)
		assert.GreaterOrEqual(t, g.PowerW, 0.0)
		assert.False(t, math.IsInf(g.PowerW, 0))

		if pct, ok := g.MemoryPercent(); ok {
			assert.GreaterOrEqual(t, pct, 0.0)
			assert.LessOrEqual(t, pct, 100.0)
		}
	}
}

func TestNodesFromEmptyAndPartialPayloads(t *testing.T) {
	empty := Nodes(prom.NodeSnapshot{}, NodeLabels{})
	assert.Empty(t, empty.Nodes)
	assert.Empty(t, empty.GPUs)

	partial := prom.NodeSnapshot{Series: map[string][]prom.Sample{
		prom.SeriesUp: {
			{Labels: map[string]string{}, Value: 1},
			{Labels: map[string]string{"instance": "a:9100"}, Value: math.NaN()},
			{Labels: map[string]string{"instance": "b:9100"}, Value: 0},
			{Labels: map[string]string{"instance": "b:9200"}, Value: 1},
		},
		prom.SeriesGPUTemp: {
			{Labels: map[string]string{"Hostname": "c", "gpu": "x"}, Value: 50},
			{Labels: map[string]string{"Hostname": "c", "gpu": "0"}, Value: 50},
		},
	}, Missing: []string{prom.SeriesCPU}}

	snap := Nodes(partial, DefaultNodeLabels())

	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, models.NodeUnknown, nodeByID(t, snap.Nodes, "a").State)
	assert.Equal(t, models.NodeOnline, nodeByID(t, snap.Nodes, "b").State, "any up target wins")
	assert.Equal(t, models.NodeUnknown, nodeByID(t, snap.Nodes, "c").State, "gpu-only nodes have unknown state")
	assert.Len(t, snap.GPUs, 1, "gpu without numeric index is dropped")
	assert.Equal(t, []string{prom.SeriesCPU}, snap.Missing)

	for _, n := range snap.Nodes {
		assert.NotEmpty(t, n.ID)
		assert.NotEmpty(t, n.Role)
		assert.NotEmpty(t, n.State)
	}
}

func TestStripPort(t *testing.T) {
	assert.Equal(t, "host", stripPort("host:9100"))
	assert.Equal(t, "host", stripPort("host"))
	assert.Equal(t, "::1", stripPort("[::1]:9100"))
	assert.Equal(t, "fe80::1", stripPort("fe80::1"))
	assert.Empty(t, stripPort("  "))
}

func TestHostAndWithNode(t *testing.T) {
	_, ok := Host(hostinfo.Sample{})
	assert.False(t, ok)

	n, ok := Host(hostinfo.Sample{NodeID: "gpu-01", CPUPercent: models.Float(140)})
	require.True(t, ok)
	assert.Equal(t, models.NodeOnline, n.State)
	assert.InDelta(t, 100, *n.CPUPercent, 1e-9)

	snap := Nodes(fixture.Cluster(), DefaultNodeLabels())
	merged := WithNode(snap, n)

	require.Len(t, merged.Nodes, 3)
	got := nodeByID(t, merged.Nodes, "gpu-01")
	assert.Len(t, got.GPUs, 2, "gpus are kept")
	assert.InDelta(t, 62, *got.MemoryPercent, 1e-9, "missing readings fall back to metrics")
	assert.Len(t, snap.Nodes[1].GPUs, 2, "input untouched")

	extra := WithNode(snap, models.NodeStatus{ID: "aaa", State: models.NodeOnline})
	assert.Equal(t, "aaa", extra.Nodes[0].ID)
	assert.Len(t, snap.Nodes, 3)
}

func TestDegradeStale(t *testing.T) {
	snap := Nodes(fixture.Cluster(), DefaultNodeLabels())
	now := fixture.Epoch

	fresh := DegradeStale(snap, now.Add(-20*time.Second), now, 30*time.Second)
	assert.Equal(t, snap.Nodes, fresh.Nodes)

	stale := DegradeStale(snap, now.Add(-31*time.Second), now, 30*time.Second)
	for _, n := range stale.Nodes {
		assert.Equal(t, models.NodeUnknown, n.State)
	}

	assert.Equal(t, models.NodeOnline, nodeByID(t, snap.Nodes, "gpu-01").State, "input untouched")
}

func TestAlerts(t *testing.T) {
	set := Alerts(fixture.AlertPayload(), fixture.Epoch)

	require.Len(t, set.Alerts, 3)
	assert.Equal(t, []string{"a3", "a1", "a2"},
		[]string{set.Alerts[0].Fingerprint, set.Alerts[1].Fingerprint, set.Alerts[2].Fingerprint})

	a3, a1, a2 := set.Alerts[0], set.Alerts[1], set.Alerts[2]

	assert.True(t, a3.Silenced)
	assert.Equal(t, models.AlertFiring, a3.Status)

	assert.Equal(t, "GPUHot", a1.Name)
	assert.Equal(t, "critical", a1.Severity)
	assert.Equal(t, "GPU temperature above 85C", a1.Summary)
	assert.Nil(t, a1.EndedAt)
	assert.False(t, a1.Silenced)

	assert.Equal(t, models.AlertResolved, a2.Status)
	require.NotNil(t, a2.EndedAt)

	require.Len(t, set.Silences, 1)
	assert.True(t, set.Silences[0].Matchers[0].IsEqual, "isEqual defaults to true")
	assert.Equal(t, "ops", set.Silences[0].CreatedBy)
}

func TestSilenceRejectsBadWindow(t *testing.T) {
	_, ok := Silence(alertmanager.Silence{ID: "x", StartsAt: "2025-01-02T00:00:00Z", EndsAt: "2025-01-01T00:00:00Z"})
	assert.False(t, ok)

	_, ok = Silence(alertmanager.Silence{StartsAt: "2025-01-01T00:00:00Z", EndsAt: "2025-01-02T00:00:00Z"})
	assert.False(t, ok)
}

func TestMatches(t *testing.T) {
	notEqual := false
	labels := map[string]string{"instance": "gpu-01", "severity": "critical"}

	regex := func(name, value string) models.Matcher {
		return CompileMatcher(models.Matcher{Name: name, Value: value, IsRegex: true, IsEqual: true})
	}

	assert.True(t, Matches([]models.Matcher{{Name: "instance", Value: "gpu-01", IsEqual: true}}, labels))
	assert.True(t, Matches([]models.Matcher{regex("instance", "gpu-.*")}, labels))
	assert.False(t, Matches([]models.Matcher{regex("instance", "gpu")}, labels), "regex is anchored")
	assert.True(t, Matches([]models.Matcher{{Name: "severity", Value: "warning", IsEqual: notEqual}}, labels))
	assert.False(t, Matches([]models.Matcher{regex("x", "(")}, labels))
	assert.False(t, Matches([]models.Matcher{{Name: "instance", Value: "gpu-01", IsRegex: true, IsEqual: true}}, labels),
		"uncompiled regex matcher")
	assert.False(t, Matches(nil, labels))
}

func TestSilenceCompilesRegexOnce(t *testing.T) {
	sil, ok := Silence(alertmanager.Silence{
		ID:       "s1",
		StartsAt: "2025-01-01T00:00:00Z",
		EndsAt:   "2025-01-02T00:00:00Z",
		Matchers: []alertmanager.Matcher{
			{Name: "instance", Value: "gpu-0[0-9]", IsRegex: true},
			{Name: "job", Value: "(", IsRegex: true},
			{Name: "severity", Value: "critical"},
		},
	})
	require.True(t, ok)
	require.Len(t, sil.Matchers, 3)

	require.NotNil(t, sil.Matchers[0].Pattern)
	assert.True(t, sil.Matchers[0].Pattern.MatchString("gpu-01"))
	assert.Nil(t, sil.Matchers[1].Pattern)
	assert.Nil(t, sil.Matchers[2].Pattern)
}

func TestExecutions(t *testing.T) {
	execs := Executions(fixture.Executions())

	require.Len(t, execs, 3)
	assert.Equal(t, "103", execs[0].ID)
	assert.Equal(t, models.ExecutionRunning, execs[0].Status)
	assert.Nil(t, execs[0].StoppedAt)

	assert.Equal(t, models.ExecutionSuccess, execs[1].Status)
	require.NotNil(t, execs[1].StoppedAt)

	assert.Equal(t, models.ExecutionError, execs[2].Status)
	assert.Equal(t, "wf-sync", execs[2].WorkflowID)

	latest := LatestByWorkflow(execs)
	assert.Equal(t, "103", latest["wf-backup"].ID)
	assert.Equal(t, "101", latest["wf-sync"].ID)
}

func TestExecutionStatusLegacy(t *testing.T) {
	s, ok := ExecutionStatus(n8n.Execution{Finished: true})
	require.True(t, ok)
	assert.Equal(t, models.ExecutionSuccess, s)

	s, _ = ExecutionStatus(n8n.Execution{StoppedAt: "2025-01-01T00:00:00Z"})
	assert.Equal(t, models.ExecutionError, s)

	s, _ = ExecutionStatus(n8n.Execution{})
	assert.Equal(t, models.ExecutionRunning, s)
}

func TestDevices(t *testing.T) {
	devices := Devices(fixture.States())

	require.Len(t, devices, 3)
	assert.Equal(t, "light.office", devices[0].ID)
	assert.Equal(t, "Office", devices[0].Name)
	assert.Equal(t, models.DeviceOn, devices[0].State)
	require.NotNil(t, devices[0].LastChanged)

	assert.Equal(t, "scene", devices[1].Domain)
	assert.Equal(t, models.DeviceOff, devices[1].State)

	assert.Equal(t, models.DeviceUnavailable, devices[2].State)
	assert.Equal(t, "switch.rack_fan", devices[2].Name, "name falls back to id")
}

func TestQueue(t *testing.T) {
	items := Queue(fixture.Queue())

	require.Len(t, items, 4)

	assert.Equal(t, models.QueueRunning, items[0].Status)
	require.NotNil(t, items[0].Progress)
	assert.InDelta(t, 42, *items[0].Progress, 1e-9)

	assert.Equal(t, models.QueueQueued, items[1].Status)
	assert.Nil(t, items[1].Progress, "progress only while running")

	assert.Equal(t, models.QueueCompleted, items[2].Status)
	assert.Equal(t, "/out/j3.png", items[2].ResultRef)

	assert.Equal(t, models.QueueError, items[3].Status)
	assert.Equal(t, "failed", items[3].Error)

	over := 300.0
	clamped := Queue(imagegen.QueueState{Items: []imagegen.Job{{ID: "x", Status: "running", Progress: &over}}})
	assert.InDelta(t, 100, *clamped[0].Progress, 1e-9)
}

func TestServices(t *testing.T) {
	results := []probe.Result{
		{Target: probe.Target{ID: "ollama", Category: "inference"}, Up: true, Message: "HTTP 200"},
		{Target: probe.Target{ID: "grafana", Name: "Grafana"}, Up: false},
		{Target: probe.Target{}},
	}

	services := Services(results)

	require.Len(t, services, 2)
	assert.Equal(t, models.ServiceUp, services[0].State)
	assert.Equal(t, "ollama", services[0].Name)
	assert.Equal(t, models.ServiceDown, services[1].State)
	assert.Equal(t, defaultCategory, services[1].Category)

	unknown := UnknownServices([]probe.Target{{ID: "a"}, {}})
	require.Len(t, unknown, 1)
	assert.Equal(t, models.ServiceUnknown, unknown[0].State)
}

func TestMergeExecutionsNeverRevert(t *testing.T) {
	stopped := fixture.Epoch
	prev := []models.WorkflowExecution{{ID: "1", Status: models.ExecutionSuccess, StoppedAt: &stopped}}
	next := []models.WorkflowExecution{
		{ID: "1", Status: models.ExecutionRunning},
		{ID: "2", Status: models.ExecutionQueued},
	}

	out := MergeExecutions(prev, next)

	assert.Equal(t, models.ExecutionSuccess, out[0].Status)
	assert.Equal(t, &stopped, out[0].StoppedAt)
	assert.Equal(t, models.ExecutionQueued, out[1].Status)
	assert.Equal(t, models.ExecutionRunning, next[0].Status, "input untouched")
}

func TestMergeQueueProgressMonotonic(t *testing.T) {
	prev := []models.QueueItem{
		{ID: "a", Status: models.QueueRunning, Progress: models.Float(60)},
		{ID: "b", Status: models.QueueCompleted, Progress: models.Float(100)},
		{ID: "c", Status: models.QueueRunning, Progress: models.Float(10)},
	}
	next := []models.QueueItem{
		{ID: "a", Status: models.QueueRunning, Progress: models.Float(40)},
		{ID: "b", Status: models.QueueRunning, Progress: models.Float(90)},
		{ID: "c", Status: models.QueueRunning, Progress: models.Float(20)},
	}

	out := MergeQueue(prev, next)

	assert.InDelta(t, 60, *out[0].Progress, 1e-9)
	assert.Equal(t, models.QueueCompleted, out[1].Status)
	assert.InDelta(t, 20, *out[2].Progress, 1e-9)
}

func TestMergeAlertsResolvedStaysResolved(t *testing.T) {
	started := fixture.Epoch.Add(-time.Hour)
	ended := fixture.Epoch

	prev := models.AlertSet{Alerts: []models.AlertRecord{
		{Fingerprint: "f", Status: models.AlertResolved, StartedAt: started, EndedAt: &ended},
		{Fingerprint: "g", Status: models.AlertResolved, StartedAt: started, EndedAt: &ended},
	}}
	next := models.AlertSet{Alerts: []models.AlertRecord{
		{Fingerprint: "f", Status: models.AlertFiring, StartedAt: started},
		{Fingerprint: "g", Status: models.AlertFiring, StartedAt: started.Add(time.Hour)},
	}}

	out := MergeAlerts(prev, next)

	assert.Equal(t, models.AlertResolved, out.Alerts[0].Status)
	assert.Equal(t, &ended, out.Alerts[0].EndedAt)
	assert.Equal(t, models.AlertFiring, out.Alerts[1].Status, "new occurrence fires")
}

func TestClampPercent(t *testing.T) {
	v, ok := ClampPercent(-3)
	assert.True(t, ok)
	assert.Zero(t, v)

	_, ok = ClampPercent(math.NaN())
	assert.False(t, ok)
}

func TestParseTimeRejectsZero(t *testing.T) {
	_, ok := parseTime("0001-01-01T00:00:00Z")
	assert.False(t, ok)

	_, ok = parseTime("not a time")
	assert.False(t, ok)

	got, ok := parseTime("2025-03-01T12:00:00.5+01:00")
	require.True(t, ok)
	assert.Equal(t, time.UTC, got.Location())
}
