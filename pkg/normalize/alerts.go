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
	"regexp"
	"sort"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source/alertmanager"
)

const (
	labelAlertName = "alertname"
	labelSeverity  = "severity"
)

// Alerts builds an AlertSet. An alert without fingerprint or start time is
// dropped. An alert whose end time has passed is resolved.
func Alerts(p alertmanager.Payload, now time.Time) models.AlertSet {
	set := models.AlertSet{
		Alerts:   make([]models.AlertRecord, 0, len(p.Alerts)),
		Silences: make([]models.Silence, 0, len(p.Silences)),
	}

	for _, s := range p.Silences {
		if sil, ok := Silence(s); ok {
			set.Silences = append(set.Silences, sil)
		}
	}

	sort.Slice(set.Silences, func(i, j int) bool { return set.Silences[i].ID < set.Silences[j].ID })

	for _, a := range p.Alerts {
		rec, ok := Alert(a, now)
		if !ok {
			continue
		}

		rec.Silenced = len(a.Status.SilencedBy) > 0 || silencedBy(a.Labels, set.Silences, now)
		set.Alerts = append(set.Alerts, rec)
	}

	sort.SliceStable(set.Alerts, func(i, j int) bool {
		ai, aj := set.Alerts[i], set.Alerts[j]
		if !ai.StartedAt.Equal(aj.StartedAt) {
			return ai.StartedAt.After(aj.StartedAt)
		}

		return ai.Fingerprint < aj.Fingerprint
	})

	return set
}

// Alert normalizes one alert without silence information.
func Alert(a alertmanager.Alert, now time.Time) (models.AlertRecord, bool) {
	if a.Fingerprint == "" {
		return models.AlertRecord{}, false
	}

	started, ok := parseTime(a.StartsAt)
	if !ok {
		return models.AlertRecord{}, false
	}

	rec := models.AlertRecord{
		Fingerprint: a.Fingerprint,
		Name:        firstNonEmpty(a.Labels[labelAlertName], a.Fingerprint),
		Severity:    a.Labels[labelSeverity],
		Status:      models.AlertFiring,
		StartedAt:   started,
		Summary:     firstNonEmpty(a.Annotations["summary"], a.Annotations["description"]),
	}

	if ended, ok := parseTime(a.EndsAt); ok && !ended.After(now) {
		rec.Status = models.AlertResolved
		rec.EndedAt = &ended
	}

	return rec, true
}

// Silence normalizes one silence. Silences without id or a valid window are
// dropped.
func Silence(s alertmanager.Silence) (models.Silence, bool) {
	if s.ID == "" {
		return models.Silence{}, false
	}

	starts, ok := parseTime(s.StartsAt)
	if !ok {
		return models.Silence{}, false
	}

	ends, ok := parseTime(s.EndsAt)
	if !ok || ends.Before(starts) {
		return models.Silence{}, false
	}

	out := models.Silence{
		ID:        s.ID,
		Matchers:  make([]models.Matcher, 0, len(s.Matchers)),
		StartsAt:  starts,
		EndsAt:    ends,
		CreatedBy: s.CreatedBy,
		Comment:   s.Comment,
	}

	for _, m := range s.Matchers {
		if m.Name == "" {
			continue
		}

		isEqual := true
		if m.IsEqual != nil {
			isEqual = *m.IsEqual
		}

		out.Matchers = append(out.Matchers, CompileMatcher(models.Matcher{
			Name:    m.Name,
			Value:   m.Value,
			IsRegex: m.IsRegex,
			IsEqual: isEqual,
		}))
	}

	return out, true
}

func silencedBy(labels map[string]string, silences []models.Silence, now time.Time) bool {
	for _, s := range silences {
		if s.ActiveAt(now) && Matches(s.Matchers, labels) {
			return true
		}
	}

	return false
}

// CompileMatcher fills in Pattern for a regex matcher. Regexes are anchored to
// the whole label value.
func CompileMatcher(m models.Matcher) models.Matcher {
	m.Pattern = nil

	if m.IsRegex {
		if re, err := regexp.Compile("^(?:" + m.Value + ")$"); err == nil {
			m.Pattern = re
		}
	}

	return m
}

// Matches reports whether every matcher holds for labels. An empty matcher
// list matches nothing, and so does a regex matcher without a compiled Pattern.
func Matches(matchers []models.Matcher, labels map[string]string) bool {
	if len(matchers) == 0 {
		return false
	}

	for _, m := range matchers {
		value := labels[m.Name]

		var hit bool

		if m.IsRegex {
			if m.Pattern == nil {
				return false
			}

			hit = m.Pattern.MatchString(value)
		} else {
			hit = value == m.Value
		}

		if hit != m.IsEqual {
			return false
		}
	}

	return true
}
