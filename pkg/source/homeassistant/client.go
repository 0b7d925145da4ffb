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

// Package homeassistant pkg/source/homeassistant/client.go reads entity state
// from the home automation hub and invokes its services.
package homeassistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

const (
	defaultSourceName = "homeassistant"
	statesPath        = "/api/states"
	servicesPath      = "/api/services/"
)

var errInvalidEntityID = errors.New("entity id must look like domain.object_id")

// State is the native entity state.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

// Client talks to the home automation hub.
type Client struct {
	http    *source.HTTPClient
	domains map[string]struct{}
}

// New creates a client. When domains is non-empty, Fetch keeps only entities
// in those domains.
func New(baseURL string, domains []string, opts ...source.HTTPOption) (*Client, error) {
	hc, err := source.NewHTTPClient(defaultSourceName, baseURL, opts...)
	if err != nil {
		return nil, err
	}

	c := &Client{http: hc, domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		c.domains[d] = struct{}{}
	}

	return c, nil
}

func (*Client) Name() string {
	return defaultSourceName
}

// Fetch returns the current entity states.
func (c *Client) Fetch(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.http.GetJSON(ctx, statesPath, nil, &states); err != nil {
		return nil, err
	}

	if len(c.domains) == 0 {
		return states, nil
	}

	filtered := states[:0]

	for _, s := range states {
		if _, ok := c.domains[Domain(s.EntityID)]; ok {
			filtered = append(filtered, s)
		}
	}

	return filtered, nil
}

// CallService invokes domain.service on an entity.
func (c *Client) CallService(ctx context.Context, domain, service, entityID, idempotencyKey string) error {
	if Domain(entityID) == "" {
		return fmt.Errorf("%w: %q", errInvalidEntityID, entityID)
	}

	path := servicesPath + domain + "/" + service
	body := map[string]string{"entity_id": entityID}

	err := c.http.PostJSON(ctx, path, body, idempotencyKey, nil)

	return err
}

// Toggle flips an on/off entity.
func (c *Client) Toggle(ctx context.Context, entityID, idempotencyKey string) error {
	return c.CallService(ctx, Domain(entityID), "toggle", entityID, idempotencyKey)
}

// ActivateScene turns a scene on.
func (c *Client) ActivateScene(ctx context.Context, sceneID, idempotencyKey string) error {
	return c.CallService(ctx, "scene", "turn_on", sceneID, idempotencyKey)
}

// Domain returns the part of an entity id before the first dot.
func Domain(entityID string) string {
	domain, _, ok := strings.Cut(entityID, ".")
	if !ok || domain == "" {
		return ""
	}

	return domain
}
