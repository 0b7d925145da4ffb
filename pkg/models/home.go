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

package models

import "time"

type DeviceState string

const (
	DeviceOn          DeviceState = "on"
	DeviceOff         DeviceState = "off"
	DeviceUnavailable DeviceState = "unavailable"
	DeviceUnknown     DeviceState = "unknown"
)

// DeviceEntity is a home automation entity. Scenes use the "scene" domain.
type DeviceEntity struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Domain      string      `json:"domain"`
	State       DeviceState `json:"state"`
	RawState    string      `json:"raw_state"`
	LastChanged *time.Time  `json:"last_changed,omitempty"`
}
