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

import (
	"regexp"
	"time"
)

type AlertStatus string

const (
	AlertFiring   AlertStatus = "firing"
	AlertResolved AlertStatus = "resolved"
)

// AlertRecord is keyed by Fingerprint. It moves from firing to resolved and
// is otherwise never modified.
type AlertRecord struct {
	Fingerprint string      `json:"fingerprint"`
	Name        string      `json:"name"`
	Severity    string      `json:"severity,omitempty"`
	Status      AlertStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Silenced    bool        `json:"silenced,omitempty"`
}

// Matcher is a single silence predicate on an alert label.
type Matcher struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	IsRegex bool   `json:"is_regex"`
	IsEqual bool   `json:"is_equal"`
	// Pattern is the anchored, compiled Value of a regex matcher. It is nil
	// when Value does not compile.
	Pattern *regexp.Regexp `json:"-"`
}

// Silence references alerts through matchers over a validity window.
type Silence struct {
	ID        string    `json:"id"`
	Matchers  []Matcher `json:"matchers"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedBy string    `json:"created_by"`
	Comment   string    `json:"comment,omitempty"`
}

// ActiveAt reports whether the silence window covers t.
func (s Silence) ActiveAt(t time.Time) bool {
	return !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}

// AlertSet is the normalized output of one alert manager poll.
type AlertSet struct {
	Alerts   []AlertRecord `json:"alerts"`
	Silences []Silence     `json:"silences"`
}
