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

// Package models pkg/models/nodes.go holds the canonical records every consumer
// past the normalizer works with.
package models

import "time"

// NodeState is the reachability of a compute node.
type NodeState string

const (
	NodeOnline  NodeState = "online"
	NodeOffline NodeState = "offline"
	NodeUnknown NodeState = "unknown"
)

// NodeStatus represents one physical or logical compute node.
type NodeStatus struct {
	ID            string      `json:"id"`
	Role          string      `json:"role"`
	CPUPercent    *float64    `json:"cpu_percent,omitempty"`
	MemoryPercent *float64    `json:"memory_percent,omitempty"`
	State         NodeState   `json:"state"`
	GPUs          []GpuStatus `json:"gpus,omitempty"`
}

// GpuStatus is owned by exactly one NodeStatus.
type GpuStatus struct {
	NodeID             string   `json:"node_id"`
	Index              int      `json:"index"`
	Name               string   `json:"name"`
	TempC              float64  `json:"temp_c"`
	UtilizationPercent float64  `json:"utilization_percent"`
	PowerW             float64  `json:"power_w"`
	MemoryUsedGB       *float64 `json:"memory_used_gb,omitempty"`
	MemoryTotalGB      *float64 `json:"memory_total_gb,omitempty"`
}

// MemoryPercent returns the framebuffer usage when both sides are known.
func (g GpuStatus) MemoryPercent() (float64, bool) {
	if g.MemoryUsedGB == nil || g.MemoryTotalGB == nil || *g.MemoryTotalGB <= 0 {
		return 0, false
	}

	return *g.MemoryUsedGB / *g.MemoryTotalGB * 100, true
}

// ClusterSnapshot is the normalized output of one metrics poll.
type ClusterSnapshot struct {
	Nodes     []NodeStatus `json:"nodes"`
	GPUs      []GpuStatus  `json:"gpus"`
	Missing   []string     `json:"missing,omitempty"` // series the backend failed to return
	Timestamp time.Time    `json:"timestamp"`
}

// ServiceState is the availability of a monitored service.
type ServiceState string

const (
	ServiceUp      ServiceState = "up"
	ServiceDown    ServiceState = "down"
	ServiceUnknown ServiceState = "unknown"
)

// ServiceEntity is used both in the service inventory and as a graph node.
type ServiceEntity struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Category string       `json:"category"`
	State    ServiceState `json:"state"`
	Message  string       `json:"message,omitempty"`
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
