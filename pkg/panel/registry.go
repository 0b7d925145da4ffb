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
	"errors"
	"fmt"
)

var errDuplicatePanel = errors.New("duplicate panel id")

// Registry holds panels in registration order.
type Registry struct {
	order []Panel
	byID  map[string]Panel
}

func NewRegistry(panels ...Panel) (*Registry, error) {
	r := &Registry{byID: make(map[string]Panel, len(panels))}

	for _, p := range panels {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) Add(p Panel) error {
	if _, ok := r.byID[p.ID()]; ok {
		return fmt.Errorf("%w: %s", errDuplicatePanel, p.ID())
	}

	r.byID[p.ID()] = p
	r.order = append(r.order, p)

	return nil
}

func (r *Registry) Get(id string) (Panel, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPanel, id)
	}

	return p, nil
}

// All returns the panels in registration order.
func (r *Registry) All() []Panel {
	return append([]Panel(nil), r.order...)
}
