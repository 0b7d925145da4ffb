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

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout  = 5 * time.Second
	maxBodyBytes    = 8 << 20
	maxErrorExcerpt = 512

	// IdempotencyHeader carries the client-side token on write requests.
	IdempotencyHeader = "Idempotency-Key"
)

var errEmptyBaseURL = errors.New("base URL is required")

// HTTPClient is the request wrapper shared by every HTTP backend client.
type HTTPClient struct {
	name    string
	baseURL *url.URL
	client  *http.Client
	headers map[string]string
}

// HTTPOption customises an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithHeaders sets static headers sent on every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(c *HTTPClient) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		timeout := c.client.Timeout
		c.client = hc

		if c.client.Timeout == 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewHTTPClient creates a client bound to one backend base address.
func NewHTTPClient(name, baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s: %w", name, errEmptyBaseURL)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base URL: %w", name, err)
	}

	c := &HTTPClient{
		name:    name,
		baseURL: u,
		client:  &http.Client{Timeout: defaultTimeout},
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Name returns the source name used in errors.
func (c *HTTPClient) Name() string {
	return c.name
}

// BaseURL returns the backend base address.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL.String()
}

// URL resolves path and query against the base address.
func (c *HTTPClient) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// GetJSON issues a GET and decodes the JSON body into dst.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values, dst interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, nil, dst)
}

// PostJSON issues a POST with a JSON body. dst may be nil.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body interface{}, idempotencyKey string, dst interface{}) error {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[IdempotencyHeader] = idempotencyKey
	}

	return c.Do(ctx, http.MethodPost, path, nil, body, headers, dst)
}

// Delete issues a DELETE.
func (c *HTTPClient) Delete(ctx context.Context, path, idempotencyKey string) error {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[IdempotencyHeader] = idempotencyKey
	}

	return c.Do(ctx, http.MethodDelete, path, nil, nil, headers, nil)
}

// Do performs one request. Every failure is returned as a *Error.
func (c *HTTPClient) Do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body interface{},
	headers map[string]string,
	dst interface{}) error {
	var reader io.Reader = http.NoBody

	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return NewError(c.name, KindParse, fmt.Errorf("encode request: %w", err))
		}

		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), reader)
	if err != nil {
		return NewError(c.name, KindUnreachable, fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransport(c.name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))

		return &Error{
			Source:     c.name,
			Kind:       KindHTTP,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", method, path, strings.TrimSpace(string(excerpt))),
		}
	}

	if dst == nil {
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		if isTimeout(err) {
			return NewError(c.name, KindTimeout, err)
		}

		return NewError(c.name, KindParse, fmt.Errorf("decode %s: %w", path, err))
	}

	return nil
}
