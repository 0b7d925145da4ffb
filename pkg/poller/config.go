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

package poller

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultInterval = 10 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Config controls one poller.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	// a fetch never outlives its own cycle
	if c.Timeout > c.Interval {
		c.Timeout = c.Interval
	}

	return c
}

type options[T any] struct {
	merge    MergeFunc[T]
	logger   *zap.Logger
	recorder FetchRecorder
	now      func() time.Time
}

// Option configures a Poller or a Stream.
type Option[T any] func(*options[T])

// WithMerge applies fn between the held value and each new one.
func WithMerge[T any](fn MergeFunc[T]) Option[T] {
	return func(o *options[T]) {
		o.merge = fn
	}
}

func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(o *options[T]) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder reports fetch latencies to r.
func WithRecorder[T any](r FetchRecorder) Option[T] {
	return func(o *options[T]) {
		o.recorder = r
	}
}

// WithClock replaces time.Now, for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(o *options[T]) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions[T any](opts []Option[T]) options[T] {
	o := options[T]{logger: zap.NewNop(), now: time.Now}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
