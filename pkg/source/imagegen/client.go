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

// Package imagegen pkg/source/imagegen/client.go talks to the image generation
// queue service.
package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

const (
	defaultSourceName = "imagegen"
	queuePath         = "/api/queue"
)

var errEmptyPrompt = errors.New("prompt is required")

// Job is the native queue entry.
type Job struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	PresetID    string   `json:"preset_id"`
	Status      string   `json:"status"`
	Progress    *float64 `json:"progress,omitempty"`
	StartedAt   string   `json:"started_at,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
	ResultURL   string   `json:"result_url,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// QueueState is the native queue payload, both from GET and from the stream.
type QueueState struct {
	Items []Job `json:"items"`
}

// SubmitRequest is the body of a submission.
type SubmitRequest struct {
	Prompt   string `json:"prompt"`
	PresetID string `json:"preset_id,omitempty"`
}

// SubmitResponse carries the id the queue assigned.
type SubmitResponse struct {
	ID string `json:"id"`
}

// Client talks to the queue service.
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

// Fetch returns the queue state.
func (c *Client) Fetch(ctx context.Context) (QueueState, error) {
	var qs QueueState
	if err := c.http.GetJSON(ctx, queuePath, nil, &qs); err != nil {
		return QueueState{}, err
	}

	return qs, nil
}

// Submit enqueues a generation job.
func (c *Client) Submit(ctx context.Context, req SubmitRequest, idempotencyKey string) (SubmitResponse, error) {
	if req.Prompt == "" {
		return SubmitResponse{}, errEmptyPrompt
	}

	var resp SubmitResponse
	if err := c.http.PostJSON(ctx, queuePath, req, idempotencyKey, &resp); err != nil {
		return SubmitResponse{}, err
	}

	return resp, nil
}

// Cancel removes a queued job or stops a running one.
func (c *Client) Cancel(ctx context.Context, id, idempotencyKey string) error {
	return c.http.Delete(ctx, queuePath+"/"+url.PathEscape(id), idempotencyKey)
}

// DecodeQueueState parses one stream message.
func DecodeQueueState(data []byte) (QueueState, error) {
	var qs QueueState
	if err := json.Unmarshal(data, &qs); err != nil {
		return QueueState{}, source.NewError(defaultSourceName, source.KindParse, err)
	}

	return qs, nil
}
