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
	"sort"
	"strconv"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source/hostinfo"
	"github.com/mfreeman451/opsdeck/pkg/source/prom"
)

const (
	defaultRole   = "compute"
	mibPerGB      = 1024
	gpuIndexLabel = "gpu"
	gpuNameLabel  = "modelName"
)

// NodeLabels names the labels that identify nodes in the metrics payload.
type NodeLabels struct {
	Node    string // node_exporter series, usually "instance"
	GPUNode string // DCGM series, usually "Hostname"
	Role    string
}

// DefaultNodeLabels matches node_exporter and the DCGM exporter defaults.
func DefaultNodeLabels() NodeLabels {
	return NodeLabels{Node: "instance", GPUNode: "Hostname", Role: "role"}
}

type gpuKey struct {
	node  string
	index int
}

// Nodes builds a ClusterSnapshot from one metrics fetch. Nodes are created from
// any series that names them; state comes only from the "up" series, so a node
// known only through GPU metrics is unknown rather than online.
func Nodes(snap prom.NodeSnapshot, labels NodeLabels) models.ClusterSnapshot {
	if labels.Node == "" {
		labels.Node = "instance"
	}

	if labels.GPUNode == "" {
		labels.GPUNode = labels.Node
	}

	nodes := make(map[string]*models.NodeStatus)

	node := func(id string) *models.NodeStatus {
		n, ok := nodes[id]
		if !ok {
			n = &models.NodeStatus{ID: id, Role: defaultRole, State: models.NodeUnknown}
			nodes[id] = n
		}

		return n
	}

	for _, s := range snap.Series[prom.SeriesUp] {
		id := stripPort(s.Labels[labels.Node])
		if id == "" {
			continue
		}

		n := node(id)

		if role := s.Labels[labels.Role]; role != "" {
			n.Role = role
		}

		switch {
		case !finite(s.Value):
		case s.Value >= 1:
			n.State = models.NodeOnline
		case n.State != models.NodeOnline:
			// any target reporting up wins over a down one
			n.State = models.NodeOffline
		}
	}

	for _, s := range snap.Series[prom.SeriesCPU] {
		if id := stripPort(s.Labels[labels.Node]); id != "" {
			node(id).CPUPercent = percentPtr(s.Value)
		}
	}

	for _, s := range snap.Series[prom.SeriesMemory] {
		if id := stripPort(s.Labels[labels.Node]); id != "" {
			node(id).MemoryPercent = percentPtr(s.Value)
		}
	}

	gpus := gpuRecords(snap, labels)
	for _, g := range gpus {
		n := node(g.NodeID)
		n.GPUs = append(n.GPUs, g)
	}

	out := models.ClusterSnapshot{
		Nodes:     make([]models.NodeStatus, 0, len(nodes)),
		GPUs:      gpus,
		Missing:   append([]string(nil), snap.Missing...),
		Timestamp: snap.FetchedAt,
	}

	for _, n := range nodes {
		out.Nodes = append(out.Nodes, *n)
	}

	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })

	return out
}

func gpuRecords(snap prom.NodeSnapshot, labels NodeLabels) []models.GpuStatus {
	byKey := make(map[gpuKey]*models.GpuStatus)
	used := make(map[gpuKey]float64)
	free := make(map[gpuKey]float64)

	gpu := func(s prom.Sample) *models.GpuStatus {
		nodeID := stripPort(firstNonEmpty(s.Labels[labels.GPUNode], s.Labels[labels.Node]))
		if nodeID == "" {
			return nil
		}

		idx, err := strconv.Atoi(s.Labels[gpuIndexLabel])
		if err != nil || idx < 0 {
			return nil
		}

		k := gpuKey{node: nodeID, index: idx}

		g, ok := byKey[k]
		if !ok {
			g = &models.GpuStatus{NodeID: nodeID, Index: idx, Name: s.Labels[gpuNameLabel]}
			byKey[k] = g
		}

		if g.Name == "" {
			g.Name = s.Labels[gpuNameLabel]
		}

		return g
	}

	for _, s := range snap.Series[prom.SeriesGPUTemp] {
		if g := gpu(s); g != nil {
			g.TempC = nonNegative(s.Value)
		}
	}

	for _, s := range snap.Series[prom.SeriesGPUUtil] {
		if g := gpu(s); g != nil {
			g.UtilizationPercent, _ = ClampPercent(s.Value)
		}
	}

	for _, s := range snap.Series[prom.SeriesGPUPower] {
		if g := gpu(s); g != nil {
			g.PowerW = nonNegative(s.Value)
		}
	}

	for _, s := range snap.Series[prom.SeriesGPUMemUsed] {
		if g := gpu(s); g != nil && finite(s.Value) {
			used[gpuKey{g.NodeID, g.Index}] = nonNegative(s.Value)
		}
	}

	for _, s := range snap.Series[prom.SeriesGPUMemFree] {
		if g := gpu(s); g != nil && finite(s.Value) {
			free[gpuKey{g.NodeID, g.Index}] = nonNegative(s.Value)
		}
	}

	out := make([]models.GpuStatus, 0, len(byKey))

	for k, g := range byKey {
		u, hasUsed := used[k]
		f, hasFree := free[k]

		if hasUsed {
			g.MemoryUsedGB = models.Float(u / mibPerGB)
		}

		if hasUsed && hasFree {
			g.MemoryTotalGB = models.Float((u + f) / mibPerGB)
		}

		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}

		return out[i].Index < out[j].Index
	})

	return out
}

// Host turns a local host sample into a node. ok is false when the sample
// carries no identity.
func Host(s hostinfo.Sample) (models.NodeStatus, bool) {
	if s.NodeID == "" {
		return models.NodeStatus{}, false
	}

	n := models.NodeStatus{
		ID:    s.NodeID,
		Role:  firstNonEmpty(s.Role, defaultRole),
		State: models.NodeOnline,
	}

	if s.CPUPercent != nil {
		n.CPUPercent = percentPtr(*s.CPUPercent)
	}

	if s.MemoryPercent != nil {
		n.MemoryPercent = percentPtr(*s.MemoryPercent)
	}

	return n, true
}

// WithNode returns a copy of snap where n replaces any node with the same id,
// keeping that node's GPUs.
func WithNode(snap models.ClusterSnapshot, n models.NodeStatus) models.ClusterSnapshot {
	out := snap
	out.Nodes = make([]models.NodeStatus, 0, len(snap.Nodes)+1)

	replaced := false

	for _, existing := range snap.Nodes {
		if existing.ID == n.ID {
			merged := n
			merged.GPUs = existing.GPUs

			if merged.CPUPercent == nil {
				merged.CPUPercent = existing.CPUPercent
			}

			if merged.MemoryPercent == nil {
				merged.MemoryPercent = existing.MemoryPercent
			}

			out.Nodes = append(out.Nodes, merged)
			replaced = true

			continue
		}

		out.Nodes = append(out.Nodes, existing)
	}

	if !replaced {
		out.Nodes = append(out.Nodes, n)
		sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	}

	return out
}

// DegradeStale marks every node unknown when the last successful fetch is
// older than staleAfter. The input is not modified.
func DegradeStale(snap models.ClusterSnapshot, lastSuccess, now time.Time, staleAfter time.Duration) models.ClusterSnapshot {
	if staleAfter <= 0 || lastSuccess.IsZero() || now.Sub(lastSuccess) <= staleAfter {
		return snap
	}

	out := snap
	out.Nodes = make([]models.NodeStatus, len(snap.Nodes))

	for i, n := range snap.Nodes {
		n.State = models.NodeUnknown
		out.Nodes[i] = n
	}

	return out
}
