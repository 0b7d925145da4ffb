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
	"strings"

	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source/n8n"
)

// ExecutionStatus maps an engine status onto the canonical lifecycle. ok is
// false for statuses that cannot be placed.
func ExecutionStatus(e n8n.Execution) (models.ExecutionStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(e.Status)) {
	case "new", "waiting", "queued":
		return models.ExecutionQueued, true
	case "running":
		return models.ExecutionRunning, true
	case "success":
		return models.ExecutionSuccess, true
	case "error", "crashed", "canceled", "cancelled", "failed":
		return models.ExecutionError, true
	case "":
		// older engines only report the finished flag
		switch {
		case e.Finished:
			return models.ExecutionSuccess, true
		case e.StoppedAt != "":
			return models.ExecutionError, true
		default:
			return models.ExecutionRunning, true
		}
	default:
		return "", false
	}
}

// Executions returns canonical executions most recent first. Records missing
// an id, workflow id, start time or a known status are dropped.
func Executions(list n8n.ExecutionList) []models.WorkflowExecution {
	out := make([]models.WorkflowExecution, 0, len(list.Data))

	for _, e := range list.Data {
		if e.ID == "" || e.WorkflowID == "" {
			continue
		}

		status, ok := ExecutionStatus(e)
		if !ok {
			continue
		}

		started, ok := parseTime(e.StartedAt)
		if !ok {
			continue
		}

		exec := models.WorkflowExecution{
			ID:         e.ID.String(),
			WorkflowID: e.WorkflowID.String(),
			Status:     status,
			StartedAt:  started,
		}

		if status.Rank() == models.ExecutionSuccess.Rank() {
			exec.StoppedAt = timePtr(e.StoppedAt)
		}

		out = append(out, exec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}

		return out[i].ID > out[j].ID
	})

	return out
}

// LatestByWorkflow returns the most recent execution of each workflow.
// executions must be most recent first.
func LatestByWorkflow(executions []models.WorkflowExecution) map[string]models.WorkflowExecution {
	latest := make(map[string]models.WorkflowExecution)

	for _, e := range executions {
		if _, seen := latest[e.WorkflowID]; !seen {
			latest[e.WorkflowID] = e
		}
	}

	return latest
}
