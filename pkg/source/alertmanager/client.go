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

// Package alertmanager pkg/source/alertmanager/client.go reads active alerts
// and silences from the alert manager v2 API.
package alertmanager

import (
	"context"
	"net/url"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

const (
	defaultSourceName = "alertmanager"
	alertsPath        = "/api/v2/alerts"
	silencesPath      = "/api/v2/silences"
)

// Alert is the native alert shape. Times are kept as strings so a malformed
// timestamp degrades one record instead of failing the whole payload.
type Alert struct {
	Fingerprint string            `json:"fingerprint"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    string            `json:"startsAt"`
	EndsAt      string            `json:"endsAt"`
	UpdatedAt   string            `json:"updatedAt"`
	Status      struct {
		State       string   `json:"state"`
		SilencedBy  []string `json:"silencedBy"`
		InhibitedBy []string `json:"inhibitedBy"`
	} `json:"status"`
}

// Matcher is the native silence matcher.
type Matcher struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	IsRegex bool   `json:"isRegex"`
	IsEqual *bool  `json:"isEqual,omitempty"`
}

// Silence is the native silence shape.
type Silence struct {
	ID        string    `json:"id"`
	Matchers  []Matcher `json:"matchers"`
	StartsAt  string    `json:"startsAt"`
	EndsAt    string    `json:"endsAt"`
	CreatedBy string    `json:"createdBy"`
	Comment   string    `json:"comment"`
	Status    struct {
		State string `json:"state"`
	} `json:"status"`
}

// Payload is one fetch of alerts plus silences.
type Payload struct {
	Alerts   []Alert   `json:"alerts"`
	Silences []Silence `json:"silences"`
}

// Client fetches alert manager payloads.
type Client struct {
	http *source.HTTPClient
}

func New(baseURL string, opts ...source.HTTPOption) (*Client, error) {
	hc, err := source.NewHTTPClient(defaultSourceName, baseURL, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{http: hc}, nil
}

func (*Client) Name() string {
	return defaultSourceName
}

// Fetch reads alerts (including silenced ones, so they can be labelled) and
// silences.
func (c *Client) Fetch(ctx context.Context) (Payload, error) {
	var p Payload

	q := url.Values{"active": {"true"}, "silenced": {"true"}, "inhibited": {"true"}}
	if err := c.http.GetJSON(ctx, alertsPath, q, &p.Alerts); err != nil {
		return Payload{}, err
	}

	if err := c.http.GetJSON(ctx, silencesPath, nil, &p.Silences); err != nil {
		return Payload{}, err
	}

	return p, nil
}
