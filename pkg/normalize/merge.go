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

import "github.com/mfreeman451/opsdeck/pkg/models"

// MergeExecutions returns next with any execution whose status would move
// backwards replaced by its previous record.
func MergeExecutions(prev, next []models.WorkflowExecution) []models.WorkflowExecution {
	byID := make(map[string]models.WorkflowExecution, len(prev))
	for _, e := range prev {
		byID[e.ID] = e
	}

	out := make([]models.WorkflowExecution, len(next))

	for i, e := range next {
		if old, ok := byID[e.ID]; ok && old.Status.Rank() > e.Status.Rank() {
			e.Status = old.Status
			e.StoppedAt = old.StoppedAt
		}

		out[i] = e
	}

	return out
}

func queueRank(s models.QueueStatus) int {
	switch s {
	case models.QueueQueued:
		return 0
	case models.QueueRunning:
		return 1
	case models.QueueCompleted, models.QueueError:
		return 2
	default:
		return -1
	}
}

// MergeQueue keeps job status from moving backwards and progress from
// decreasing while a job is running.
func MergeQueue(prev, next []models.QueueItem) []models.QueueItem {
	byID := make(map[string]models.QueueItem, len(prev))
	for _, q := range prev {
		byID[q.ID] = q
	}

	out := make([]models.QueueItem, len(next))

	for i, q := range next {
		old, ok := byID[q.ID]
		if !ok {
			out[i] = q
			continue
		}

		if queueRank(old.Status) > queueRank(q.Status) {
			q = old
		} else if q.Status == models.QueueRunning && old.Status == models.QueueRunning &&
			old.Progress != nil && (q.Progress == nil || *q.Progress < *old.Progress) {
			q.Progress = models.Float(*old.Progress)
		}

		out[i] = q
	}

	return out
}

// MergeAlerts keeps an alert that resolved from flipping back to firing for the
// same occurrence. A new StartedAt is a new occurrence and fires normally.
func MergeAlerts(prev, next models.AlertSet) models.AlertSet {
	byFP := make(map[string]models.AlertRecord, len(prev.Alerts))
	for _, a := range prev.Alerts {
		byFP[a.Fingerprint] = a
	}

	out := models.AlertSet{
		Alerts:   make([]models.AlertRecord, len(next.Alerts)),
		Silences: next.Silences,
	}

	for i, a := range next.Alerts {
		old, ok := byFP[a.Fingerprint]
		if ok && old.Status == models.AlertResolved && a.Status == models.AlertFiring &&
			old.StartedAt.Equal(a.StartedAt) {
			resolved := a
			resolved.Status = models.AlertResolved
			resolved.EndedAt = old.EndedAt
			a = resolved
		}

		out.Alerts[i] = a
	}

	return out
}
