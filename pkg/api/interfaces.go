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

package api

import (
	"context"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

// Service represents the API server functionality.
type Service interface {
	Start(addr string) error
	Stop(ctx context.Context) error
	// Notify schedules a push of the current pages to live clients.
	Notify()
}

// SourceMetrics is the per-source fetch history shown on /api/sources.
type SourceMetrics interface {
	Sources() []string
	GetMetrics(sourceName string) []models.MetricPoint
	LastPoint(sourceName string) *models.MetricPoint
}

// ActivityReader is the audit log query used by /api/activity.
type ActivityReader interface {
	RecentActivity(ctx context.Context, since time.Time, limit int) ([]models.ActivityEvent, error)
}
