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
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source/probe"
)

const defaultCategory = "service"

// Services turns probe results into service entities in the same order.
func Services(results []probe.Result) []models.ServiceEntity {
	out := make([]models.ServiceEntity, 0, len(results))

	for _, r := range results {
		if r.Target.ID == "" {
			continue
		}

		state := models.ServiceDown
		if r.Up {
			state = models.ServiceUp
		}

		out = append(out, models.ServiceEntity{
			ID:       r.Target.ID,
			Name:     firstNonEmpty(r.Target.Name, r.Target.ID),
			Category: firstNonEmpty(r.Target.Category, defaultCategory),
			State:    state,
			Message:  r.Message,
		})
	}

	return out
}

// UnknownServices returns the inventory with every state unknown, used before
// the first probe completes or while probes are failing.
func UnknownServices(targets []probe.Target) []models.ServiceEntity {
	out := make([]models.ServiceEntity, 0, len(targets))

	for _, t := range targets {
		if t.ID == "" {
			continue
		}

		out = append(out, models.ServiceEntity{
			ID:       t.ID,
			Name:     firstNonEmpty(t.Name, t.ID),
			Category: firstNonEmpty(t.Category, defaultCategory),
			State:    models.ServiceUnknown,
		})
	}

	return out
}
