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
	"sort"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

// AverageGPUTemp averages the temperature of the given GPU records. ok is false
// when there are none.
func AverageGPUTemp(gpus []models.GpuStatus) (float64, bool) {
	if len(gpus) == 0 {
		return 0, false
	}

	var sum float64
	for _, g := range gpus {
		sum += g.TempC
	}

	return sum / float64(len(gpus)), true
}

// AverageGPUUtilization averages utilisation of the given GPU records.
func AverageGPUUtilization(gpus []models.GpuStatus) (float64, bool) {
	if len(gpus) == 0 {
		return 0, false
	}

	var sum float64
	for _, g := range gpus {
		sum += g.UtilizationPercent
	}

	return sum / float64(len(gpus)), true
}

// HealthScore is the percentage of healthy entities among those whose state
// is known. With nothing known the score is 0.
func HealthScore(healthy, known int) float64 {
	if known <= 0 {
		return 0
	}

	if healthy > known {
		healthy = known
	}

	if healthy < 0 {
		healthy = 0
	}

	return float64(healthy) / float64(known) * 100
}

// NodeHealthScore scores nodes; unknown nodes are left out.
func NodeHealthScore(nodes []models.NodeStatus) float64 {
	healthy, known := 0, 0

	for _, n := range nodes {
		switch n.State {
		case models.NodeOnline:
			healthy++
			known++
		case models.NodeOffline:
			known++
		case models.NodeUnknown:
		}
	}

	return HealthScore(healthy, known)
}

// ServiceHealthScore scores services; unknown services are left out.
func ServiceHealthScore(services []models.ServiceEntity) float64 {
	healthy, known := 0, 0

	for _, s := range services {
		switch s.State {
		case models.ServiceUp:
			healthy++
			known++
		case models.ServiceDown:
			known++
		case models.ServiceUnknown:
		}
	}

	return HealthScore(healthy, known)
}

// AlertSummary counts firing, unsilenced alerts.
type AlertSummary struct {
	Firing     int            `json:"firing"`
	Silenced   int            `json:"silenced"`
	Resolved   int            `json:"resolved"`
	BySeverity map[string]int `json:"by_severity"`
	Oldest     *time.Time     `json:"oldest,omitempty"`
}

// SummarizeAlerts counts alerts by status and severity. Silenced alerts are
// counted apart and never towards Firing. Missing severity counts as "none".
func SummarizeAlerts(alerts []models.AlertRecord) AlertSummary {
	s := AlertSummary{BySeverity: make(map[string]int)}

	for _, a := range alerts {
		switch {
		case a.Status == models.AlertResolved:
			s.Resolved++
		case a.Silenced:
			s.Silenced++
		default:
			s.Firing++

			sev := a.Severity
			if sev == "" {
				sev = "none"
			}

			s.BySeverity[sev]++

			if s.Oldest == nil || a.StartedAt.Before(*s.Oldest) {
				started := a.StartedAt
				s.Oldest = &started
			}
		}
	}

	return s
}

// Severities returns the severity keys of s in a stable order.
func (s AlertSummary) Severities() []string {
	keys := make([]string, 0, len(s.BySeverity))
	for k := range s.BySeverity {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
