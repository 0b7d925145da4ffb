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

import (
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

const (
	DefaultSparklineWindow  = 2 * time.Hour
	DefaultSparklineBuckets = 24
)

// Sparkline is a time-bucketed event histogram, oldest bucket first.
type Sparkline struct {
	Window      time.Duration `json:"window"`
	BucketWidth time.Duration `json:"bucket_width"`
	Counts      []int         `json:"counts"`
	Heights     []float64     `json:"heights"` // 0-100, relative to the largest bucket
	Total       int           `json:"total"`
}

// BuildSparkline buckets events by age relative to now. Events older than the
// window are dropped; events stamped in the future count as newest. A
// non-positive window or bucket count falls back to the defaults.
func BuildSparkline(events []models.ActivityEvent, now time.Time, window time.Duration, buckets int) Sparkline {
	if window <= 0 {
		window = DefaultSparklineWindow
	}

	if buckets <= 0 {
		buckets = DefaultSparklineBuckets
	}

	width := window / time.Duration(buckets)
	if width <= 0 {
		width = 1
	}

	s := Sparkline{
		Window:      window,
		BucketWidth: width,
		Counts:      make([]int, buckets),
		Heights:     make([]float64, buckets),
	}

	for _, e := range events {
		age := now.Sub(e.Timestamp)
		if age < 0 {
			age = 0
		}

		if age > window {
			continue
		}

		idx := int(age / width)
		if idx >= buckets {
			idx = buckets - 1
		}

		// idx counts back from now; the slice runs oldest to newest
		s.Counts[buckets-1-idx]++
		s.Total++
	}

	peak := 1
	for _, c := range s.Counts {
		if c > peak {
			peak = c
		}
	}

	for i, c := range s.Counts {
		s.Heights[i] = float64(c) / float64(peak) * 100
	}

	return s
}

// RecentEvents returns the events not older than window, preserving order.
func RecentEvents(events []models.ActivityEvent, now time.Time, window time.Duration) []models.ActivityEvent {
	out := make([]models.ActivityEvent, 0, len(events))

	for _, e := range events {
		if now.Sub(e.Timestamp) <= window {
			out = append(out, e)
		}
	}

	return out
}
