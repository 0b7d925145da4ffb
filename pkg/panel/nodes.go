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

package panel

import (
	"time"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/normalize"
	"github.com/mfreeman451/opsdeck/pkg/poller"
)

type NodeRow struct {
	models.NodeStatus
	StateColor  string `json:"state_color"`
	CPUColor    string `json:"cpu_color"`
	MemoryColor string `json:"memory_color"`
}

type GPURow struct {
	models.GpuStatus
	TempColor     string   `json:"temp_color"`
	TempLabel     string   `json:"temp_label"`
	UtilColor     string   `json:"util_color"`
	MemoryPercent *float64 `json:"memory_percent,omitempty"`
}

type NodesBody struct {
	Health       derived.BandResult `json:"health"`
	Online       int                `json:"online"`
	Offline      int                `json:"offline"`
	Unknown      int                `json:"unknown"`
	AvgTempC     *float64           `json:"avg_temp_c,omitempty"`
	AvgTempColor string             `json:"avg_temp_color"`
	AvgUtil      *float64           `json:"avg_utilization,omitempty"`
	Nodes        []NodeRow          `json:"nodes,omitempty"`
	GPUs         []GPURow           `json:"gpus,omitempty"`
	Missing      []string           `json:"missing,omitempty"`
	GPUCount     int                `json:"gpu_count"`
	NodeCount    int                `json:"node_count"`
	LastSuccess  *time.Time         `json:"last_success,omitempty"`
}

// NodesPanel shows compute nodes and their GPUs.
type NodesPanel struct {
	*Shell[models.ClusterSnapshot]
	thresholds derived.Thresholds
}

func NewNodesPanel(feed poller.Feed[models.ClusterSnapshot], thresholds derived.Thresholds, staleAfter time.Duration) *NodesPanel {
	return &NodesPanel{
		Shell:      NewShell("nodes", "cluster_metrics", "Nodes", feed, staleAfter),
		thresholds: thresholds,
	}
}

// Snapshot is the current cluster view with staleness applied.
func (p *NodesPanel) Snapshot(now time.Time) (models.ClusterSnapshot, bool) {
	st := p.Feed().Snapshot()
	if !st.HasValue {
		return models.ClusterSnapshot{}, false
	}

	return normalize.DegradeStale(st.Value, st.UpdatedAt, now, p.staleAfter), true
}

func (p *NodesPanel) Render(opts RenderOptions, now time.Time) Frame {
	f, st := p.frame(opts, now)

	body := NodesBody{AvgTempColor: derived.ColorNeutral}

	snap, ok := p.Snapshot(now)
	if !ok {
		body.Health = p.thresholds.HealthBand(0)
		f.Body = body

		return f
	}

	updated := st.UpdatedAt
	body.LastSuccess = &updated
	body.Health = p.thresholds.HealthBand(derived.NodeHealthScore(snap.Nodes))
	body.Missing = snap.Missing
	body.NodeCount = len(snap.Nodes)
	body.GPUCount = len(snap.GPUs)

	for _, n := range snap.Nodes {
		switch n.State {
		case models.NodeOnline:
			body.Online++
		case models.NodeOffline:
			body.Offline++
		case models.NodeUnknown:
			body.Unknown++
		}
	}

	if avg, ok := derived.AverageGPUTemp(snap.GPUs); ok {
		body.AvgTempC = &avg
		body.AvgTempColor = derived.GPUTempScale.Color(avg)
	}

	if avg, ok := derived.AverageGPUUtilization(snap.GPUs); ok {
		body.AvgUtil = &avg
	}

	if !opts.Compact() {
		body.Nodes = make([]NodeRow, 0, len(snap.Nodes))
		for _, n := range snap.Nodes {
			// GPUs are listed separately
			n.GPUs = nil
			body.Nodes = append(body.Nodes, nodeRow(n))
		}

		body.GPUs = make([]GPURow, 0, len(snap.GPUs))
		for _, g := range snap.GPUs {
			body.GPUs = append(body.GPUs, gpuRow(g))
		}
	}

	f.Body = body

	return f
}

func nodeRow(n models.NodeStatus) NodeRow {
	row := NodeRow{
		NodeStatus:  n,
		StateColor:  nodeStateColor(n.State),
		CPUColor:    derived.ColorNeutral,
		MemoryColor: derived.ColorNeutral,
	}

	if n.CPUPercent != nil {
		row.CPUColor = derived.PressureScale.Color(*n.CPUPercent)
	}

	if n.MemoryPercent != nil {
		row.MemoryColor = derived.PressureScale.Color(*n.MemoryPercent)
	}

	return row
}

func gpuRow(g models.GpuStatus) GPURow {
	temp := derived.GPUTempScale.Pick(g.TempC)

	row := GPURow{
		GpuStatus: g,
		TempColor: temp.Color,
		TempLabel: temp.Label,
		UtilColor: derived.UtilizationScale.Color(g.UtilizationPercent),
	}

	if pct, ok := g.MemoryPercent(); ok {
		row.MemoryPercent = &pct
	}

	return row
}

func nodeStateColor(s models.NodeState) string {
	switch s {
	case models.NodeOnline:
		return derived.ColorGood
	case models.NodeOffline:
		return derived.ColorCritical
	default:
		return derived.ColorNeutral
	}
}
