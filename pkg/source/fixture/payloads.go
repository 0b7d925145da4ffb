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

package fixture

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/source/alertmanager"
	"github.com/mfreeman451/opsdeck/pkg/source/homeassistant"
	"github.com/mfreeman451/opsdeck/pkg/source/imagegen"
	"github.com/mfreeman451/opsdeck/pkg/source/n8n"
	"github.com/mfreeman451/opsdeck/pkg/source/prom"
)

var errConnectionRefused = errors.New("connection refused")

// Epoch is the fixed "now" used by the generated payloads.
var Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Node describes one generated node. NaN values are left out of the payload.
type Node struct {
	Instance string
	Role     string
	Up       float64
	CPU      float64
	Memory   float64
}

// GPU describes one generated GPU.
type GPU struct {
	Hostname string
	Index    int
	Model    string
	TempC    float64
	Util     float64
	PowerW   float64
	UsedMiB  float64
	FreeMiB  float64
}

// NodeSnapshot builds a metrics payload from nodes and GPUs.
func NodeSnapshot(nodes []Node, gpus []GPU) prom.NodeSnapshot {
	snap := prom.NodeSnapshot{Series: map[string][]prom.Sample{}, FetchedAt: Epoch}

	add := func(series string, labels map[string]string, v float64) {
		if math.IsNaN(v) {
			return
		}

		snap.Series[series] = append(snap.Series[series], prom.Sample{Labels: labels, Value: v, Timestamp: Epoch})
	}

	for _, n := range nodes {
		labels := map[string]string{"instance": n.Instance, "job": "node"}
		if n.Role != "" {
			labels["role"] = n.Role
		}

		add(prom.SeriesUp, labels, n.Up)
		add(prom.SeriesCPU, labels, n.CPU)
		add(prom.SeriesMemory, labels, n.Memory)
	}

	for _, g := range gpus {
		labels := map[string]string{
			"Hostname":  g.Hostname,
			"gpu":       strconv.Itoa(g.Index),
			"modelName": g.Model,
		}

		add(prom.SeriesGPUTemp, labels, g.TempC)
		add(prom.SeriesGPUUtil, labels, g.Util)
		add(prom.SeriesGPUPower, labels, g.PowerW)
		add(prom.SeriesGPUMemUsed, labels, g.UsedMiB)
		add(prom.SeriesGPUMemFree, labels, g.FreeMiB)
	}

	return snap
}

// Cluster is three nodes, two GPUs on the first, and none on the others.
// The third node reports no CPU and an out-of-range memory reading.
func Cluster() prom.NodeSnapshot {
	return NodeSnapshot(
		[]Node{
			{Instance: "gpu-01:9100", Role: "inference", Up: 1, CPU: 41.5, Memory: 62},
			{Instance: "ctl-01:9100", Role: "control-plane", Up: 1, CPU: 12, Memory: 30},
			{Instance: "nas-01:9100", Up: 0, CPU: math.NaN(), Memory: 130},
		},
		[]GPU{
			{Hostname: "gpu-01", Index: 0, Model: "RTX 4090", TempC: 60, Util: 97, PowerW: 310, UsedMiB: 20480, FreeMiB: 4096},
			{Hostname: "gpu-01", Index: 1, Model: "RTX 4090", TempC: 70, Util: 140, PowerW: 290, UsedMiB: math.NaN(), FreeMiB: math.NaN()},
		},
	)
}

// AlertPayload has one firing alert, one resolved alert, one alert silenced by
// a matcher and one malformed alert.
func AlertPayload() alertmanager.Payload {
	var p alertmanager.Payload

	firing := alertmanager.Alert{
		Fingerprint: "a1",
		Labels:      map[string]string{"alertname": "GPUHot", "severity": "critical", "instance": "gpu-01"},
		Annotations: map[string]string{"summary": "GPU temperature above 85C"},
		StartsAt:    Epoch.Add(-30 * time.Minute).Format(time.RFC3339),
		EndsAt:      Epoch.Add(5 * time.Minute).Format(time.RFC3339),
	}
	firing.Status.State = "active"

	resolved := alertmanager.Alert{
		Fingerprint: "a2",
		Labels:      map[string]string{"alertname": "DiskFull", "severity": "warning"},
		StartsAt:    Epoch.Add(-2 * time.Hour).Format(time.RFC3339),
		EndsAt:      Epoch.Add(-10 * time.Minute).Format(time.RFC3339),
	}

	silenced := alertmanager.Alert{
		Fingerprint: "a3",
		Labels:      map[string]string{"alertname": "NodeDown", "severity": "critical", "instance": "nas-01"},
		StartsAt:    Epoch.Add(-15 * time.Minute).Format(time.RFC3339),
		EndsAt:      Epoch.Add(5 * time.Minute).Format(time.RFC3339),
	}

	malformed := alertmanager.Alert{Fingerprint: "", StartsAt: "yesterday"}

	p.Alerts = []alertmanager.Alert{firing, resolved, silenced, malformed}
	p.Silences = []alertmanager.Silence{{
		ID:        "s1",
		Matchers:  []alertmanager.Matcher{{Name: "instance", Value: "nas-.*", IsRegex: true}},
		StartsAt:  Epoch.Add(-time.Hour).Format(time.RFC3339),
		EndsAt:    Epoch.Add(time.Hour).Format(time.RFC3339),
		CreatedBy: "ops",
		Comment:   "maintenance",
	}}

	return p
}

// Executions has a running, a successful, a failed and an unmappable
// execution, oldest last.
func Executions() n8n.ExecutionList {
	return n8n.ExecutionList{Data: []n8n.Execution{
		{ID: "103", WorkflowID: "wf-backup", Status: "running", StartedAt: Epoch.Add(-time.Minute).Format(time.RFC3339)},
		{
			ID: "102", WorkflowID: "wf-backup", Status: "success", Finished: true,
			StartedAt: Epoch.Add(-time.Hour).Format(time.RFC3339),
			StoppedAt: Epoch.Add(-50 * time.Minute).Format(time.RFC3339),
		},
		{
			ID: "101", WorkflowID: "wf-sync", Status: "crashed",
			StartedAt: Epoch.Add(-2 * time.Hour).Format(time.RFC3339),
			StoppedAt: Epoch.Add(-2*time.Hour + time.Minute).Format(time.RFC3339),
		},
		{ID: "100", WorkflowID: "wf-sync", Status: "mystery", StartedAt: Epoch.Add(-3 * time.Hour).Format(time.RFC3339)},
	}}
}

// States has a light, a switch, a scene and an entity without a domain.
func States() []homeassistant.State {
	return []homeassistant.State{
		{EntityID: "light.office", State: "on", Attributes: map[string]any{"friendly_name": "Office"}, LastChanged: Epoch.Format(time.RFC3339)},
		{EntityID: "switch.rack_fan", State: "unavailable"},
		{EntityID: "scene.movie", State: Epoch.Add(-time.Hour).Format(time.RFC3339), Attributes: map[string]any{"friendly_name": "Movie"}},
		{EntityID: "garbage", State: "on"},
	}
}

// Queue has one job per status plus one with an unknown status.
func Queue() imagegen.QueueState {
	progress := 42.0
	over := 180.0

	return imagegen.QueueState{Items: []imagegen.Job{
		{ID: "j1", Prompt: "a lighthouse", PresetID: "sdxl", Status: "running", Progress: &progress, StartedAt: Epoch.Format(time.RFC3339)},
		{ID: "j2", Prompt: "a forest", PresetID: "sdxl", Status: "pending", Progress: &over},
		{ID: "j3", Prompt: "a city", PresetID: "flux", Status: "done", ResultURL: "/out/j3.png"},
		{ID: "j4", Prompt: "a boat", PresetID: "flux", Status: "failed"},
		{ID: "j5", Prompt: "?", Status: "teleporting"},
	}}
}
