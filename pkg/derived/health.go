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

// Package derived holds pure functions computed from canonical records: health
// bands, colour scales, activity sparklines and relative times. Nothing here
// reads the clock; "now" is always an argument.
package derived

import "math"

// Band is a coarse health classification.
type Band string

const (
	BandGood     Band = "good"
	BandDegraded Band = "degraded"
	BandCritical Band = "critical"
)

const (
	ColorGood     = "#22c55e"
	ColorDegraded = "#f59e0b"
	ColorCritical = "#ef4444"
	ColorNeutral  = "#64748b"
	ColorCool     = "#38bdf8"
)

// Thresholds are inclusive lower bounds for the good and degraded bands.
type Thresholds struct {
	Good     float64 `json:"good"`
	Degraded float64 `json:"degraded"`
}

// DefaultThresholds: 90 and above is good, 70 and above degraded.
func DefaultThresholds() Thresholds {
	return Thresholds{Good: 90, Degraded: 70}
}

// BandResult is a band with its display colour.
type BandResult struct {
	Score float64 `json:"score"`
	Band  Band    `json:"band"`
	Color string  `json:"color"`
}

// HealthBand classifies score, which is clamped to [0,100] first. NaN is
// critical.
func (t Thresholds) HealthBand(score float64) BandResult {
	if math.IsNaN(score) {
		return BandResult{Score: 0, Band: BandCritical, Color: ColorCritical}
	}

	score = math.Max(0, math.Min(100, score))

	switch {
	case score >= t.Good:
		return BandResult{Score: score, Band: BandGood, Color: ColorGood}
	case score >= t.Degraded:
		return BandResult{Score: score, Band: BandDegraded, Color: ColorDegraded}
	default:
		return BandResult{Score: score, Band: BandCritical, Color: ColorCritical}
	}
}

// HealthBand uses DefaultThresholds.
func HealthBand(score float64) BandResult {
	return DefaultThresholds().HealthBand(score)
}
