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
	"time"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/poller"
)

type AlertRow struct {
	models.AlertRecord
	Age   string `json:"age"`
	Color string `json:"color"`
}

type SilenceRow struct {
	models.Silence
	Active bool   `json:"active"`
	Ends   string `json:"ends"`
}

type AlertsBody struct {
	Summary  derived.AlertSummary `json:"summary"`
	Alerts   []AlertRow           `json:"alerts"`
	Silences []SilenceRow         `json:"silences,omitempty"`
}

type AlertsPanel struct {
	*Shell[models.AlertSet]
}

func NewAlertsPanel(feed poller.Feed[models.AlertSet], staleAfter time.Duration) *AlertsPanel {
	return &AlertsPanel{Shell: NewShell("alerts", "alert_list", "Alerts", feed, staleAfter)}
}

func (p *AlertsPanel) Render(opts RenderOptions, now time.Time) Frame {
	f, st := p.frame(opts, now)

	body := AlertsBody{
		Summary: derived.SummarizeAlerts(nil),
		Alerts:  []AlertRow{},
	}

	if !st.HasValue {
		f.Body = body

		return f
	}

	body.Summary = derived.SummarizeAlerts(st.Value.Alerts)

	if f.Header != nil && !opts.Compact() {
		f.Header.Controls = []Control{{
			ID:       "severity",
			Label:    "Severity",
			Options:  append([]string{filterAll}, body.Summary.Severities()...),
			Selected: selectedOr(opts.Filter, filterAll),
		}}
	}

	for _, a := range st.Value.Alerts {
		// compact mode shows only what needs attention
		if opts.Compact() && (a.Status == models.AlertResolved || a.Silenced) {
			continue
		}

		if opts.Filter != "" && opts.Filter != filterAll && a.Severity != opts.Filter {
			continue
		}

		body.Alerts = append(body.Alerts, AlertRow{
			AlertRecord: a,
			Age:         derived.RelativeTime(a.StartedAt, now),
			Color:       alertColor(a),
		})
	}

	body.Alerts = limit(body.Alerts, listLimit(opts))

	if !opts.Compact() {
		for _, s := range st.Value.Silences {
			body.Silences = append(body.Silences, SilenceRow{
				Silence: s,
				Active:  s.ActiveAt(now),
				Ends:    derived.RelativeTime(s.EndsAt, now),
			})
		}
	}

	f.Body = body

	return f
}

func alertColor(a models.AlertRecord) string {
	switch {
	case a.Status == models.AlertResolved:
		return derived.ColorGood
	case a.Silenced:
		return derived.ColorNeutral
	case a.Severity == "critical" || a.Severity == "page":
		return derived.ColorCritical
	case a.Severity == "warning":
		return derived.ColorDegraded
	default:
		return derived.ColorCool
	}
}
