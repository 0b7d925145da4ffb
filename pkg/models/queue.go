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

package models

import "time"

type QueueStatus string

const (
	QueueQueued    QueueStatus = "queued"
	QueueRunning   QueueStatus = "running"
	QueueCompleted QueueStatus = "completed"
	QueueError     QueueStatus = "error"
)

// QueueItem is one image generation job. Progress only carries meaning while
// the item is running.
type QueueItem struct {
	ID          string      `json:"id"`
	Prompt      string      `json:"prompt"`
	PresetID    string      `json:"preset_id"`
	Status      QueueStatus `json:"status"`
	Progress    *float64    `json:"progress,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	ResultRef   string      `json:"result_ref,omitempty"`
	Error       string      `json:"error,omitempty"`
}
