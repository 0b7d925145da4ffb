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
	"context"
	"fmt"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/source/homeassistant"
)

const (
	ActionToggle = "toggle"
	ActionScene  = "scene"

	sceneDomain = "scene"
)

// HomeController invokes services on the home automation hub.
type HomeController interface {
	Toggle(ctx context.Context, entityID, idempotencyKey string) error
	ActivateScene(ctx context.Context, sceneID, idempotencyKey string) error
}

type DeviceRow struct {
	models.DeviceEntity
	Color   string `json:"color"`
	Changed string `json:"changed,omitempty"`
}

type HomeBody struct {
	Devices     []DeviceRow `json:"devices"`
	Scenes      []DeviceRow `json:"scenes"`
	On          int         `json:"on"`
	Unavailable int         `json:"unavailable"`
	ActiveScene string      `json:"active_scene,omitempty"`
}

type HomePanel struct {
	*Shell[[]models.DeviceEntity]
	control HomeController
}

func NewHomePanel(feed poller.Feed[[]models.DeviceEntity], control HomeController, staleAfter time.Duration) *HomePanel {
	return &HomePanel{
		Shell:   NewShell("home", "home_control", "Home", feed, staleAfter),
		control: control,
	}
}

func (p *HomePanel) Actions() []string {
	if p.control == nil {
		return nil
	}

	return []string{ActionToggle, ActionScene}
}

func (p *HomePanel) Execute(ctx context.Context, req ActionRequest, key string) error {
	if p.control == nil {
		return ErrUnsupportedAction
	}

	domain := homeassistant.Domain(req.TargetID)

	switch req.Kind {
	case ActionToggle:
		if domain == "" || domain == sceneDomain {
			return fmt.Errorf("%w: cannot toggle %q", ErrInvalidAction, req.TargetID)
		}

		return p.control.Toggle(ctx, req.TargetID, key)
	case ActionScene:
		if domain != sceneDomain {
			return fmt.Errorf("%w: %q is not a scene", ErrInvalidAction, req.TargetID)
		}

		return p.control.ActivateScene(ctx, req.TargetID, key)
	default:
		return ErrUnsupportedAction
	}
}

func (p *HomePanel) Render(opts RenderOptions, now time.Time) Frame {
	f, st := p.frame(opts, now)
	f.Actions = p.Actions()

	body := HomeBody{
		Devices:     []DeviceRow{},
		Scenes:      []DeviceRow{},
		ActiveScene: opts.Scene,
	}

	domains := []string{filterAll}
	seen := map[string]struct{}{}

	if st.HasValue {
		for _, d := range st.Value {
			row := DeviceRow{DeviceEntity: d, Color: deviceColor(d.State)}
			if d.LastChanged != nil {
				row.Changed = derived.RelativeTime(*d.LastChanged, now)
			}

			if d.Domain == sceneDomain {
				if d.ID == opts.Scene {
					row.Color = derived.ColorGood
				}

				body.Scenes = append(body.Scenes, row)

				continue
			}

			if _, ok := seen[d.Domain]; !ok {
				seen[d.Domain] = struct{}{}
				domains = append(domains, d.Domain)
			}

			switch d.State {
			case models.DeviceOn:
				body.On++
			case models.DeviceUnavailable:
				body.Unavailable++
			case models.DeviceOff, models.DeviceUnknown:
			}

			if opts.Filter != "" && opts.Filter != filterAll && d.Domain != opts.Filter {
				continue
			}

			body.Devices = append(body.Devices, row)
		}
	}

	if f.Header != nil && !opts.Compact() {
		f.Header.Controls = []Control{{
			ID:       "domain",
			Label:    "Domain",
			Options:  domains,
			Selected: selectedOr(opts.Filter, filterAll),
		}}
	}

	body.Devices = limit(body.Devices, listLimit(opts))
	f.Body = body

	return f
}

func deviceColor(s models.DeviceState) string {
	switch s {
	case models.DeviceOn:
		return derived.ColorGood
	case models.DeviceOff:
		return derived.ColorNeutral
	case models.DeviceUnavailable:
		return derived.ColorCritical
	default:
		return derived.ColorDegraded
	}
}
