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

// WorkflowDefinition is a static catalog entry.
type WorkflowDefinition struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
	WebhookPath string `json:"webhook_path" yaml:"webhook_path"`
}

type ExecutionStatus string

const (
	ExecutionQueued  ExecutionStatus = "queued"
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

// Rank orders statuses along queued -> running -> {success|error}.
func (s ExecutionStatus) Rank() int {
	switch s {
	case ExecutionQueued:
		return 0
	case ExecutionRunning:
		return 1
	case ExecutionSuccess, ExecutionError:
		return 2
	default:
		return -1
	}
}

// WorkflowExecution is one run of a workflow definition.
type WorkflowExecution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Status     ExecutionStatus `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	StoppedAt  *time.Time      `json:"stopped_at,omitempty"`
}
