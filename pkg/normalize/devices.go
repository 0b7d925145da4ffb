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
	"sort"
	"strings"

	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source/homeassistant"
)

const sceneDomain = "scene"

// DeviceState maps a raw hub state string.
func DeviceState(raw string) models.DeviceState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "open", "playing", "home":
		return models.DeviceOn
	case "off", "closed", "idle", "paused", "not_home":
		return models.DeviceOff
	case "unavailable":
		return models.DeviceUnavailable
	default:
		return models.DeviceUnknown
	}
}

// Devices normalizes hub entities, sorted by domain then id. Entities whose id
// has no domain are dropped.
func Devices(states []homeassistant.State) []models.DeviceEntity {
	out := make([]models.DeviceEntity, 0, len(states))

	for _, s := range states {
		domain := homeassistant.Domain(s.EntityID)
		if domain == "" {
			continue
		}

		name, _ := s.Attributes["friendly_name"].(string)

		d := models.DeviceEntity{
			ID:          s.EntityID,
			Name:        firstNonEmpty(name, s.EntityID),
			Domain:      domain,
			State:       DeviceState(s.State),
			RawState:    s.State,
			LastChanged: timePtr(s.LastChanged),
		}

		// a scene's state is its last activation time
		if domain == sceneDomain && d.State == models.DeviceUnknown && s.State != "" {
			d.State = models.DeviceOff
		}

		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}

		return out[i].ID < out[j].ID
	})

	return out
}
