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

package alerts

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Multi fans one alert out to several services. Disabled services are
// skipped; cooldown suppression is not an error.
type Multi struct {
	services []AlertService
}

var _ AlertService = (*Multi)(nil)

func NewMulti(services ...AlertService) *Multi {
	return &Multi{services: services}
}

// FromConfig builds one alerter per enabled webhook.
func FromConfig(configs []WebhookConfig, logger *zap.Logger) *Multi {
	services := make([]AlertService, 0, len(configs))

	for _, c := range configs {
		if !c.Enabled {
			continue
		}

		services = append(services, NewWebhookAlerter(c, logger))
	}

	return NewMulti(services...)
}

func (m *Multi) IsEnabled() bool {
	for _, s := range m.services {
		if s.IsEnabled() {
			return true
		}
	}

	return false
}

func (m *Multi) Alert(ctx context.Context, alert *WebhookAlert) error {
	var errs []error

	for _, s := range m.services {
		if !s.IsEnabled() {
			continue
		}

		a := *alert
		if err := s.Alert(ctx, &a); err != nil && !IsCooldown(err) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
