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

package derived

import "math"

// Stop is one step of a threshold colour scale: values at or above Min take
// Color.
type Stop struct {
	Min   float64 `json:"min"`
	Color string  `json:"color"`
	Label string  `json:"label"`
}

// Scale is a list of stops in ascending Min order.
type Scale []Stop

var (
	// GPUTempScale colours temperatures in degrees Celsius.
	GPUTempScale = Scale{
		{Min: math.Inf(-1), Color: ColorCool, Label: "cool"},
		{Min: 60, Color: ColorGood, Label: "normal"},
		{Min: 75, Color: ColorDegraded, Label: "warm"},
		{Min: 85, Color: ColorCritical, Label: "hot"},
	}

	// UtilizationScale colours percentages; high load is a warning, not an error.
	UtilizationScale = Scale{
		{Min: math.Inf(-1), Color: ColorNeutral, Label: "idle"},
		{Min: 10, Color: ColorGood, Label: "active"},
		{Min: 90, Color: ColorDegraded, Label: "saturated"},
	}

	// PressureScale colours CPU and memory usage percentages.
	PressureScale = Scale{
		{Min: math.Inf(-1), Color: ColorGood, Label: "ok"},
		{Min: 75, Color: ColorDegraded, Label: "high"},
		{Min: 90, Color: ColorCritical, Label: "critical"},
	}
)

// Pick returns the highest stop whose Min is at or below v. NaN and empty
// scales yield a neutral stop.
func (s Scale) Pick(v float64) Stop {
	neutral := Stop{Min: math.Inf(-1), Color: ColorNeutral, Label: "unknown"}
	if math.IsNaN(v) || len(s) == 0 {
		return neutral
	}

	picked := neutral
	found := false

	for _, stop := range s {
		if v >= stop.Min {
			picked = stop
			found = true
		}
	}

	if !found {
		return neutral
	}

	return picked
}

// Color is shorthand for Pick(v).Color.
func (s Scale) Color(v float64) string {
	return s.Pick(v).Color
}
