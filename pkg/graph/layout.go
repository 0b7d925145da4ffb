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

// Package graph builds the radial relationship graph of monitored entities
// and computes neighbour highlighting for a selected node.
package graph

import (
	"math"
	"sort"
)

const (
	defaultRadius  = 200
	defaultSpread  = 18 // degrees between siblings in one category
	defaultCenterX = 300
	defaultCenterY = 300
	// unconfigured categories start at the top of the circle
	startAngle = -90
)

// CategoryPlacement fixes where a category sits. Angle is in degrees,
// clockwise from the positive x axis in screen coordinates.
type CategoryPlacement struct {
	Angle  float64 `json:"angle" yaml:"angle"`
	Radius float64 `json:"radius" yaml:"radius"`
}

// Layout holds the parameters of the radial layout.
type Layout struct {
	Categories map[string]CategoryPlacement `json:"categories"`
	Spread     float64                      `json:"spread"`
	Radius     float64                      `json:"radius"`
	CenterX    float64                      `json:"center_x"`
	CenterY    float64                      `json:"center_y"`
}

func DefaultLayout() Layout {
	return Layout{
		Categories: make(map[string]CategoryPlacement),
		Spread:     defaultSpread,
		Radius:     defaultRadius,
		CenterX:    defaultCenterX,
		CenterY:    defaultCenterY,
	}
}

// placements resolves a placement for every category in categories, which must
// be sorted. Configured categories keep their placement; the rest are spaced
// evenly around the circle in sorted order at the default radius.
func (l Layout) placements(categories []string) map[string]CategoryPlacement {
	out := make(map[string]CategoryPlacement, len(categories))

	var unplaced []string

	for _, c := range categories {
		if p, ok := l.Categories[c]; ok {
			if p.Radius <= 0 {
				p.Radius = l.Radius
			}

			out[c] = p

			continue
		}

		unplaced = append(unplaced, c)
	}

	for i, c := range unplaced {
		out[c] = CategoryPlacement{
			Angle:  startAngle + 360*float64(i)/float64(len(unplaced)),
			Radius: l.Radius,
		}
	}

	return out
}

// position returns the Cartesian point for angle (degrees) and radius.
func (l Layout) position(angle, radius float64) (float64, float64) {
	rad := angle * math.Pi / 180

	x := l.CenterX + radius*math.Cos(rad)
	y := l.CenterY + radius*math.Sin(rad)

	return round(x), round(y)
}

// round trims floating point noise so coordinates compare exactly.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
