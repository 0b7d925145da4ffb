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

package view

import (
	"fmt"
	"strconv"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/panel"
)

// Tile is a headline number lifted from a rendered panel.
type Tile struct {
	PanelID string `json:"panel_id"`
	Label   string `json:"label"`
	Value   string `json:"value"`
	Color   string `json:"color"`
}

// Tiles collects the headline values of the rendered panels. Panels without a
// value yet produce no tile.
func Tiles(frames []panel.Frame) []Tile {
	var tiles []Tile

	for _, f := range frames {
		if f.UpdatedAt == nil {
			continue
		}

		switch body := f.Body.(type) {
		case panel.NodesBody:
			tiles = append(tiles, Tile{
				PanelID: f.ID,
				Label:   "Node health",
				Value:   fmt.Sprintf("%.0f%%", body.Health.Score),
				Color:   body.Health.Color,
			})

			if body.AvgTempC != nil {
				tiles = append(tiles, Tile{
					PanelID: f.ID,
					Label:   "Avg GPU temp",
					Value:   fmt.Sprintf("%.0f°C", *body.AvgTempC),
					Color:   body.AvgTempColor,
				})
			}
		case panel.ServicesBody:
			tiles = append(tiles, Tile{
				PanelID: f.ID,
				Label:   "Service health",
				Value:   fmt.Sprintf("%.0f%%", body.Health.Score),
				Color:   body.Health.Color,
			})
		case panel.AlertsBody:
			color := derived.ColorGood
			if body.Summary.Firing > 0 {
				color = derived.ColorCritical
			}

			tiles = append(tiles, Tile{
				PanelID: f.ID,
				Label:   "Firing alerts",
				Value:   strconv.Itoa(body.Summary.Firing),
				Color:   color,
			})
		case panel.ActivityBody:
			tiles = append(tiles, Tile{
				PanelID: f.ID,
				Label:   "Recent actions",
				Value:   strconv.Itoa(body.Sparkline.Total),
				Color:   derived.ColorNeutral,
			})
		}
	}

	return tiles
}
