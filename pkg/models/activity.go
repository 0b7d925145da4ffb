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

const (
	ActorUser   = "user"
	ActorSystem = "system"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ActivityEvent is an append-only audit event.
type ActivityEvent struct {
	Timestamp time.Time `json:"timestamp"`
	ActorKind string    `json:"actor_kind"`
	Action    string    `json:"action"`
	TargetID  string    `json:"target_id"`
	Outcome   string    `json:"outcome"`
}

// ActionRecord is the stored outcome of one idempotent write action.
type ActionRecord struct {
	IdempotencyKey string    `json:"idempotency_key"`
	PanelID        string    `json:"panel_id"`
	Kind           string    `json:"kind"`
	TargetID       string    `json:"target_id"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}
