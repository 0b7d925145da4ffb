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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

// holder owns a State and its listeners. Results are applied in sequence
// order; a result older than the applied one is discarded.
type holder[T any] struct {
	name   string
	merge  MergeFunc[T]
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	issued    uint64
	state     State[T]
	listeners map[int]Listener[T]
	nextID    int
}

func newHolder[T any](name string, o options[T]) *holder[T] {
	return &holder[T]{
		name:      name,
		merge:     o.merge,
		logger:    o.logger,
		now:       o.now,
		state:     State[T]{Source: name},
		listeners: make(map[int]Listener[T]),
	}
}

// begin issues the next sequence number and marks the state loading.
func (h *holder[T]) begin() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.issued++
	h.state.Loading = true

	return h.issued
}

// issuedSeq is the sequence number of the most recently started fetch.
func (h *holder[T]) issuedSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.issued
}

func (h *holder[T]) snapshot() State[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.state
}

// apply settles fetch seq and notifies listeners if it was applied.
func (h *holder[T]) apply(seq uint64, v T, err error) State[T] {
	h.mu.Lock()

	if seq <= h.state.Seq {
		h.state.Loading = h.issued > h.state.Seq
		st := h.state
		h.mu.Unlock()

		h.logger.Debug("Discarding out-of-order result",
			zap.String("source", h.name),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", st.Seq))

		return st
	}

	now := h.now()

	h.state.Seq = seq
	h.state.AttemptedAt = now
	h.state.Loading = h.issued > seq

	if err != nil {
		h.state.Err = asSourceError(h.name, err)
	} else {
		if h.merge != nil && h.state.HasValue {
			v = h.merge(h.state.Value, v)
		}

		h.state.Value = v
		h.state.HasValue = true
		h.state.Err = nil
		h.state.UpdatedAt = now
	}

	st := h.state
	listeners := make([]Listener[T], 0, len(h.listeners))

	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}

	h.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}

	return st
}

// abandon drops fetch seq without touching the held value.
func (h *holder[T]) abandon(seq uint64) State[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if seq == h.issued {
		h.state.Loading = false
	}

	return h.state
}

func (h *holder[T]) subscribe(l Listener[T]) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.listeners[id] = l

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		delete(h.listeners, id)
	}
}

func asSourceError(name string, err error) *source.Error {
	wrapped := source.Wrap(name, err)

	se, ok := wrapped.(*source.Error)
	if !ok {
		return source.NewError(name, source.KindUnreachable, err)
	}

	return se
}
