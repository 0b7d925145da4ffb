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

// Package prom pkg/source/prom/client.go queries the metrics engine's instant
// query endpoint for node and GPU series.
package prom

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/source"
	"golang.org/x/sync/errgroup"
)

const (
	SeriesUp          = "up"
	SeriesCPU         = "cpu"
	SeriesMemory      = "memory"
	SeriesGPUTemp     = "gpu_temp"
	SeriesGPUUtil     = "gpu_util"
	SeriesGPUPower    = "gpu_power"
	SeriesGPUMemUsed  = "gpu_mem_used"
	SeriesGPUMemFree  = "gpu_mem_free"
	queryPath         = "/api/v1/query"
	statusSuccess     = "success"
	resultTypeVector  = "vector"
	defaultSourceName = "prometheus"
)

// DefaultQueries are used for any series the configuration leaves out.
var DefaultQueries = map[string]string{
	SeriesUp:         `up{job="node"}`,
	SeriesCPU:        `100 - (avg by (instance) (rate(node_cpu_seconds_total{mode="idle"}[1m])) * 100)`,
	SeriesMemory:     `100 * (1 - node_memory_MemAvailable_bytes / node_memory_MemTotal_bytes)`,
	SeriesGPUTemp:    `DCGM_FI_DEV_GPU_TEMP`,
	SeriesGPUUtil:    `DCGM_FI_DEV_GPU_UTIL`,
	SeriesGPUPower:   `DCGM_FI_DEV_POWER_USAGE`,
	SeriesGPUMemUsed: `DCGM_FI_DEV_FB_USED`,
	SeriesGPUMemFree: `DCGM_FI_DEV_FB_FREE`,
}

// Sample is one element of an instant vector. Value is NaN when the backend
// sent something that is not a number.
type Sample struct {
	Labels    map[string]string `json:"labels"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
}

// NodeSnapshot is the native payload of one fetch: samples per series name.
type NodeSnapshot struct {
	Series    map[string][]Sample `json:"series"`
	Missing   []string            `json:"missing,omitempty"`
	FetchedAt time.Time           `json:"fetched_at"`
}

type queryResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// Client fetches NodeSnapshots.
type Client struct {
	http    *source.HTTPClient
	queries map[string]string
	now     func() time.Time
}

// New creates a client. queries overrides entries of DefaultQueries.
func New(baseURL string, queries map[string]string, opts ...source.HTTPOption) (*Client, error) {
	hc, err := source.NewHTTPClient(defaultSourceName, baseURL, opts...)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(DefaultQueries))
	for k, v := range DefaultQueries {
		merged[k] = v
	}

	for k, v := range queries {
		if v != "" {
			merged[k] = v
		}
	}

	return &Client{http: hc, queries: merged, now: time.Now}, nil
}

func (*Client) Name() string {
	return defaultSourceName
}

// Fetch runs every configured query in parallel. Only a failure of the "up"
// series fails the fetch; other failures are reported in Missing.
func (c *Client) Fetch(ctx context.Context) (NodeSnapshot, error) {
	names := make([]string, 0, len(c.queries))
	for name := range c.queries {
		names = append(names, name)
	}

	sort.Strings(names)

	var (
		mu     sync.Mutex
		g      errgroup.Group
		series = make(map[string][]Sample, len(names))
		errs   = make(map[string]error)
	)

	for _, name := range names {
		g.Go(func() error {
			samples, err := c.Query(ctx, c.queries[name])

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs[name] = err
				return nil
			}

			series[name] = samples

			return nil
		})
	}

	_ = g.Wait()

	if err, ok := errs[SeriesUp]; ok {
		return NodeSnapshot{}, err
	}

	snap := NodeSnapshot{Series: series, FetchedAt: c.now()}

	for _, name := range names {
		if _, failed := errs[name]; failed {
			snap.Missing = append(snap.Missing, name)
		}
	}

	return snap, nil
}

// Query runs a single instant query.
func (c *Client) Query(ctx context.Context, query string) ([]Sample, error) {
	var resp queryResponse
	if err := c.http.GetJSON(ctx, queryPath, url.Values{"query": {query}}, &resp); err != nil {
		return nil, err
	}

	if resp.Status != statusSuccess {
		return nil, source.NewError(defaultSourceName, source.KindParse,
			fmt.Errorf("query %q: status %q: %s", query, resp.Status, resp.Error))
	}

	if resp.Data.ResultType != resultTypeVector {
		return nil, source.NewError(defaultSourceName, source.KindParse,
			fmt.Errorf("query %q: unexpected result type %q", query, resp.Data.ResultType))
	}

	samples := make([]Sample, 0, len(resp.Data.Result))

	for _, r := range resp.Data.Result {
		s := Sample{Labels: r.Metric, Value: math.NaN()}

		if len(r.Value) == 2 {
			s.Timestamp, s.Value = parseValue(r.Value[0], r.Value[1])
		}

		samples = append(samples, s)
	}

	return samples, nil
}

func parseValue(rawTS, rawVal json.RawMessage) (time.Time, float64) {
	var (
		ts  float64
		val string
		t   time.Time
	)

	if err := json.Unmarshal(rawTS, &ts); err == nil {
		sec, frac := math.Modf(ts)
		t = time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	}

	if err := json.Unmarshal(rawVal, &val); err != nil {
		return t, math.NaN()
	}

	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return t, math.NaN()
	}

	return t, v
}
