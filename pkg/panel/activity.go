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

type ActivityRow struct {
	models.ActivityEvent
	Ago string `json:"ago"`
}

type ActivityBody struct {
	Sparkline derived.Sparkline `json:"sparkline"`
	Recent    []ActivityRow     `json:"recent,omitempty"`
	Failures  int               `json:"failures"`
}

// ActivityPanel draws the audit log sparkline. The histogram is rebuilt from
// the raw events on every render.
type ActivityPanel struct {
	*Shell[[]models.ActivityEvent]
	window  time.Duration
	buckets int
}

func NewActivityPanel(feed poller.Feed[[]models.ActivityEvent], window time.Duration, buckets int, staleAfter time.Duration) *ActivityPanel {
	return &ActivityPanel{
		Shell:   NewShell("activity", "activity_sparkline", "Activity", feed, staleAfter),
		window:  window,
		buckets: buckets,
	}
}

func (p *ActivityPanel) Render(opts RenderOptions, now time.Time) Frame {
	f, st := p.frame(opts, now)

	var events []models.ActivityEvent
	if st.HasValue {
		events = st.Value
	}

	body := ActivityBody{Sparkline: derived.BuildSparkline(events, now, p.window, p.buckets)}

	recent := derived.RecentEvents(events, now, body.Sparkline.Window)
	for _, e := range recent {
		if e.Outcome == models.OutcomeFailure {
			body.Failures++
		}
	}

	if !opts.Compact() {
		body.Recent = make([]ActivityRow, 0, len(recent))
		for _, e := range limit(recent, fullListLimit) {
			body.Recent = append(body.Recent, ActivityRow{ActivityEvent: e, Ago: derived.RelativeTime(e.Timestamp, now)})
		}
	}

	f.Body = body

	return f
}
