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

// Package hostinfo reports the dashboard host's own CPU and memory usage.
package hostinfo

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

const defaultSourceName = "host"

// Sample is one reading of the local host.
type Sample struct {
	NodeID        string    `json:"node_id"`
	Role          string    `json:"role"`
	CPUPercent    *float64  `json:"cpu_percent,omitempty"`
	MemoryPercent *float64  `json:"memory_percent,omitempty"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector reads the local host through gopsutil.
type Collector struct {
	nodeID string
	role   string
}

// New creates a collector. An empty nodeID means the host name.
func New(nodeID, role string) *Collector {
	return &Collector{nodeID: nodeID, role: role}
}

func (*Collector) Name() string {
	return defaultSourceName
}

// Fetch reads CPU and memory. A reading that fails is left nil; only a total
// failure is returned as an error.
func (c *Collector) Fetch(ctx context.Context) (Sample, error) {
	s := Sample{NodeID: c.nodeID, Role: c.role, CollectedAt: time.Now()}

	if s.NodeID == "" {
		info, err := host.InfoWithContext(ctx)
		if err != nil {
			return Sample{}, source.Wrap(defaultSourceName, err)
		}

		s.NodeID = info.Hostname
	}

	// Zero interval compares against the previous call.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		v := pct[0]
		s.CPUPercent = &v
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		v := vm.UsedPercent
		s.MemoryPercent = &v
	}

	if s.CPUPercent == nil && s.MemoryPercent == nil {
		return Sample{}, source.NewError(defaultSourceName, source.KindUnreachable, errNoReadings)
	}

	return s, nil
}
