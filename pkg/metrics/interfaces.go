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

package metrics

import (
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

// MetricStore keeps the most recent fetch samples of one source.
type MetricStore interface {
	Add(timestamp time.Time, responseTime int64, outcome string)
	GetPoints() []models.MetricPoint
	GetLastPoint() *models.MetricPoint
}

// MetricCollector keeps a MetricStore per source.
type MetricCollector interface {
	AddMetric(sourceName string, timestamp time.Time, responseTime int64, outcome string) error
	GetMetrics(sourceName string) []models.MetricPoint
	CleanupStaleSources(staleDuration time.Duration)
}
