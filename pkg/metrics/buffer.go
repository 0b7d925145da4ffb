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

package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

// metricPoint represents a single fetch sample.
type metricPoint struct {
	timestamp    int64
	responseTime int64
	outcome      string
}

// RingBuffer is a fixed size buffer that overwrites its oldest sample.
type RingBuffer struct {
	mu     sync.RWMutex
	points []metricPoint
	pos    int64 // total samples ever written
	size   int64
}

// NewBuffer creates a MetricStore holding size samples.
func NewBuffer(size int) MetricStore {
	if size <= 0 {
		size = 1
	}

	return &RingBuffer{
		points: make([]metricPoint, size),
		size:   int64(size),
	}
}

// Add adds a new sample to the buffer.
func (b *RingBuffer) Add(timestamp time.Time, responseTime int64, outcome string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.pos % b.size
	b.points[idx] = metricPoint{
		timestamp:    timestamp.UnixNano(),
		responseTime: responseTime,
		outcome:      outcome,
	}

	atomic.AddInt64(&b.pos, 1)
}

// GetPoints returns the samples written so far, newest first.
func (b *RingBuffer) GetPoints() []models.MetricPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.pos
	if n > b.size {
		n = b.size
	}

	points := make([]models.MetricPoint, 0, n)

	for i := int64(0); i < n; i++ {
		idx := (b.pos - i - 1 + b.size) % b.size
		points = append(points, toModel(b.points[idx]))
	}

	return points
}

// GetLastPoint returns the newest sample or nil.
func (b *RingBuffer) GetLastPoint() *models.MetricPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.pos == 0 {
		return nil
	}

	p := toModel(b.points[(b.pos-1)%b.size])

	return &p
}

func toModel(p metricPoint) models.MetricPoint {
	return models.MetricPoint{
		Timestamp:    time.Unix(0, p.timestamp),
		ResponseTime: p.responseTime,
		Outcome:      p.outcome,
	}
}
