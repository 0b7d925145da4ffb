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

// Package probe checks service health endpoints in parallel.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

const (
	defaultSourceName  = "probes"
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 8
	maxDrain           = 4 << 10
)

// Target is one health endpoint.
type Target struct {
	ID       string
	Name     string
	Category string
	URL      string
}

// Result is the outcome of checking one target. A failing endpoint is a
// result with Up=false, never a fetch error.
type Result struct {
	Target     Target        `json:"target"`
	Up         bool          `json:"up"`
	StatusCode int           `json:"status_code,omitempty"`
	Message    string        `json:"message"`
	Latency    time.Duration `json:"latency"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Prober checks a fixed list of targets.
type Prober struct {
	targets     []Target
	client      *http.Client
	concurrency int
	now         func() time.Time
}

type Option func(*Prober)

func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) {
		if c != nil {
			p.client = c
		}
	}
}

func New(targets []Target, opts ...Option) *Prober {
	p := &Prober{
		targets:     append([]Target(nil), targets...),
		client:      &http.Client{Timeout: defaultTimeout},
		concurrency: defaultConcurrency,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (*Prober) Name() string {
	return defaultSourceName
}

// Fetch checks every target and returns results sorted by target id. If ctx
// ends before every check settles the whole fetch fails, since the unfinished
// targets say nothing about their endpoints.
func (p *Prober) Fetch(ctx context.Context) ([]Result, error) {
	results := make([]Result, len(p.targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, t := range p.targets {
		g.Go(func() error {
			results[i] = p.check(gctx, t)

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, source.Wrap(defaultSourceName, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Target.ID < results[j].Target.ID
	})

	return results, nil
}

func (p *Prober) check(ctx context.Context, t Target) Result {
	start := p.now()
	res := Result{Target: t, CheckedAt: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, http.NoBody)
	if err != nil {
		res.Message = fmt.Sprintf("invalid url: %v", err)

		return res
	}

	resp, err := p.client.Do(req)
	res.Latency = p.now().Sub(start)

	if err != nil {
		res.Message = fmt.Sprintf("%s is not reachable: %v", t.URL, err)

		return res
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		_ = resp.Body.Close()
	}()

	res.StatusCode = resp.StatusCode
	res.Up = resp.StatusCode >= 200 && resp.StatusCode < 400

	if res.Up {
		res.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	} else {
		res.Message = fmt.Sprintf("unhealthy: HTTP %d", resp.StatusCode)
	}

	return res
}
