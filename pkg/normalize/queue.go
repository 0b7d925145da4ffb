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
	"strings"

	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source/imagegen"
)

// QueueStatus maps a raw job status. ok is false for unrecognised values.
func QueueStatus(raw string) (models.QueueStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "pending", "waiting":
		return models.QueueQueued, true
	case "running", "processing", "in_progress":
		return models.QueueRunning, true
	case "completed", "complete", "done", "success":
		return models.QueueCompleted, true
	case "error", "failed", "cancelled", "canceled":
		return models.QueueError, true
	default:
		return "", false
	}
}

// Queue normalizes the job list, keeping queue order. Progress is kept only for
// running jobs; completed jobs report 100.
func Queue(qs imagegen.QueueState) []models.QueueItem {
	out := make([]models.QueueItem, 0, len(qs.Items))

	for _, j := range qs.Items {
		if j.ID == "" {
			continue
		}

		status, ok := QueueStatus(j.Status)
		if !ok {
			continue
		}

		item := models.QueueItem{
			ID:          j.ID,
			Prompt:      j.Prompt,
			PresetID:    j.PresetID,
			Status:      status,
			StartedAt:   timePtr(j.StartedAt),
			CompletedAt: timePtr(j.CompletedAt),
			ResultRef:   j.ResultURL,
			Error:       j.Error,
		}

		switch status {
		case models.QueueRunning:
			if j.Progress != nil {
				item.Progress = percentPtr(*j.Progress)
			}
		case models.QueueCompleted:
			item.Progress = models.Float(100)
		}

		if status == models.QueueError && item.Error == "" {
			item.Error = j.Status
		}

		out = append(out, item)
	}

	return out
}
