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

// Package normalize maps each backend's native payload onto the canonical
// records in pkg/models. Every function here is pure and total: malformed
// input yields a well-formed record or is skipped, never a partial record.
package normalize

import (
	"math"
	"strings"
	"time"
)

// ClampPercent bounds v to [0,100]. NaN and infinities are reported as absent.
func ClampPercent(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return math.Max(0, math.Min(100, v)), true
}

func percentPtr(v float64) *float64 {
	p, ok := ClampPercent(v)
	if !ok {
		return nil
	}

	return &p
}

// nonNegative treats invalid numbers as zero.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}

	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// parseTime accepts RFC 3339 timestamps. The zero time and anything before the
// epoch count as absent, since several backends send "0001-01-01T00:00:00Z".
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.Unix() <= 0 {
		return time.Time{}, false
	}

	return t.UTC(), true
}

func timePtr(s string) *time.Time {
	t, ok := parseTime(s)
	if !ok {
		return nil
	}

	return &t
}

// stripPort turns "host:9100" into "host". IPv6 literals keep their brackets
// stripped as well.
func stripPort(instance string) string {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return ""
	}

	if strings.HasPrefix(instance, "[") {
		if end := strings.Index(instance, "]"); end > 0 {
			return instance[1:end]
		}
	}

	if strings.Count(instance, ":") == 1 {
		host, _, _ := strings.Cut(instance, ":")
		return host
	}

	return instance
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	return ""
}
