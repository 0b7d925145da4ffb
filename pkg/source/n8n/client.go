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

// Package n8n pkg/source/n8n/client.go reads execution history from the
// workflow engine and triggers workflows through their webhooks.
package n8n

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

const (
	defaultSourceName = "n8n"
	executionsPath    = "/api/v1/executions"
	webhookPrefix     = "/webhook/"
	defaultLimit      = 50
)

var errNoWebhook = errors.New("workflow has no webhook path")

// Execution is the native execution record. The id is sometimes numeric and
// sometimes a string depending on the engine version.
type Execution struct {
	ID         flexString `json:"id"`
	WorkflowID flexString `json:"workflowId"`
	Status     string     `json:"status"`
	Finished   bool       `json:"finished"`
	Mode       string     `json:"mode"`
	StartedAt  string     `json:"startedAt"`
	StoppedAt  string     `json:"stoppedAt"`
}

// ExecutionList is the native list envelope.
type ExecutionList struct {
	Data       []Execution `json:"data"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// TriggerResult is whatever the webhook answered with.
type TriggerResult struct {
	ExecutionID string `json:"executionId,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Client talks to the workflow engine.
type Client struct {
	http  *source.HTTPClient
	limit int
}

func New(baseURL string, limit int, opts ...source.HTTPOption) (*Client, error) {
	hc, err := source.NewHTTPClient(defaultSourceName, baseURL, opts...)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultLimit
	}

	return &Client{http: hc, limit: limit}, nil
}

func (*Client) Name() string {
	return defaultSourceName
}

// Fetch returns the most recent executions.
func (c *Client) Fetch(ctx context.Context) (ExecutionList, error) {
	var list ExecutionList

	q := url.Values{"limit": {strconv.Itoa(c.limit)}}
	if err := c.http.GetJSON(ctx, executionsPath, q, &list); err != nil {
		return ExecutionList{}, err
	}

	return list, nil
}

// Trigger posts payload to the workflow's webhook.
func (c *Client) Trigger(ctx context.Context, webhookPath string, payload map[string]any, idempotencyKey string) (TriggerResult, error) {
	if webhookPath == "" {
		return TriggerResult{}, errNoWebhook
	}

	if payload == nil {
		payload = map[string]any{}
	}

	var res TriggerResult

	path := webhookPrefix + strings.TrimLeft(webhookPath, "/")
	if err := c.http.PostJSON(ctx, path, payload, idempotencyKey, &res); err != nil {
		// Webhooks commonly answer with an empty or non-JSON body.
		if source.KindOf(err) == source.KindParse {
			return TriggerResult{}, nil
		}

		return TriggerResult{}, err
	}

	return res, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}

	if unq, err := strconv.Unquote(s); err == nil {
		*f = flexString(unq)
		return nil
	}

	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("invalid id %s: %w", s, err)
	}

	*f = flexString(s)

	return nil
}

func (f flexString) String() string {
	return string(f)
}
