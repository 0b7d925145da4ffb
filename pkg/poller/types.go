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

// Package poller keeps the last known state of one source, either by polling it
// on a fixed interval or by consuming a push stream.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

var (
	ErrAlreadyStarted = errors.New("poller already started")
	ErrStopped        = errors.New("poller stopped")
)

// State is what consumers see of a source. Value is retained when a later
// fetch fails, so Err and HasValue can both be set.
type State[T any] struct {
	Source      string
	Value       T
	HasValue    bool
	Err         *source.Error
	UpdatedAt   time.Time // last successful fetch
	AttemptedAt time.Time // last settled fetch, successful or not
	Loading     bool
	Seq         uint64 // sequence number of the applied fetch
}

// Stale reports whether the last success is older than after.
func (s State[T]) Stale(now time.Time, after time.Duration) bool {
	if !s.HasValue || after <= 0 {
		return false
	}

	return now.Sub(s.UpdatedAt) > after
}

// Listener is called after every settled fetch, outside any lock.
type Listener[T any] func(State[T])

// Feed is the transport-independent view of a source. Poller and Stream both
// implement it.
type Feed[T any] interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Snapshot() State[T]
	// Refresh fetches now and returns the state of a fetch that started no
	// earlier than the call. Concurrent callers share one fetch.
	Refresh(ctx context.Context) State[T]
	Subscribe(l Listener[T]) (unsubscribe func())
}

// FetchRecorder receives the latency and outcome of every fetch.
type FetchRecorder interface {
	RecordFetch(source string, latency time.Duration, err error)
}

// MergeFunc combines the previous value with a newly fetched one.
type MergeFunc[T any] func(prev, next T) T
