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

package panel

import (
	"sort"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/poller"
)

type ServiceRow struct {
	models.ServiceEntity
	Color string `json:"color"`
}

type ServicesBody struct {
	Health   derived.BandResult `json:"health"`
	Up       int                `json:"up"`
	Down     int                `json:"down"`
	Unknown  int                `json:"unknown"`
	Services []ServiceRow       `json:"services"`
}

// ServicesPanel is the service inventory with probe results.
type ServicesPanel struct {
	*Shell[[]models.ServiceEntity]
	thresholds derived.Thresholds
}

func NewServicesPanel(feed poller.Feed[[]models.ServiceEntity], thresholds derived.Thresholds, staleAfter time.Duration) *ServicesPanel {
	return &ServicesPanel{
		Shell:      NewShell("services", "service_inventory", "Services", feed, staleAfter),
		thresholds: thresholds,
	}
}

func (p *ServicesPanel) Render(opts RenderOptions, now time.Time) Frame {
	f, st := p.frame(opts, now)

	var services []models.ServiceEntity
	if st.HasValue {
		services = st.Value
	}

	body := ServicesBody{
		Health:   p.thresholds.HealthBand(derived.ServiceHealthScore(services)),
		Services: []ServiceRow{},
	}

	categories := map[string]struct{}{}

	for _, s := range services {
		categories[s.Category] = struct{}{}

		switch s.State {
		case models.ServiceUp:
			body.Up++
		case models.ServiceDown:
			body.Down++
		case models.ServiceUnknown:
			body.Unknown++
		}

		if opts.Filter != "" && opts.Filter != filterAll && s.Category != opts.Filter {
			continue
		}

		// compact mode lists only problems
		if opts.Compact() && s.State == models.ServiceUp {
			continue
		}

		body.Services = append(body.Services, ServiceRow{ServiceEntity: s, Color: serviceColor(s.State)})
	}

	if f.Header != nil && !opts.Compact() {
		options := make([]string, 0, len(categories))
		for c := range categories {
			options = append(options, c)
		}

		sort.Strings(options)

		f.Header.Controls = []Control{{
			ID:       "category",
			Label:    "Category",
			Options:  append([]string{filterAll}, options...),
			Selected: selectedOr(opts.Filter, filterAll),
		}}
	}

	body.Services = limit(body.Services, listLimit(opts))
	f.Body = body

	return f
}

func serviceColor(s models.ServiceState) string {
	switch s {
	case models.ServiceUp:
		return derived.ColorGood
	case models.ServiceDown:
		return derived.ColorCritical
	default:
		return derived.ColorNeutral
	}
}
