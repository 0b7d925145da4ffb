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

package grpc

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter sets per-source statuses on a health server.
type HealthReporter struct {
	hs *health.Server
}

func NewHealthReporter(hs *health.Server) *HealthReporter {
	return &HealthReporter{hs: hs}
}

// SetService sets the status of the named service.
func (r *HealthReporter) SetService(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	r.hs.SetServingStatus(service, status)
}

// SetSource sets the status of one polled source.
func (r *HealthReporter) SetSource(name string, healthy bool) {
	r.SetService(SourceServicePrefix+name, healthy)
}
