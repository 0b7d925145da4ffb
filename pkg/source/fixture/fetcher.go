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

// Package fixture provides deterministic source clients and native payloads for
// tests. Nothing in the serving path imports it.
package fixture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

// Step is one scripted fetch outcome.
type Step[T any] struct {
	Value T
	Err   error
	Delay time.Duration
	// Gate, when set, blocks the fetch until it is closed or the context ends.
	Gate chan struct{}
}

// Scripted returns its steps in order and then repeats the last one.
type Scripted[T any] struct {
	name  string
	mu    sync.Mutex
	steps []Step[T]
	next  int
	calls atomic.Int64
}

func NewScripted[T any](name string, steps ...Step[T]) *Scripted[T] {
	return &Scripted[T]{name: name, steps: steps}
}

// Values is a shorthand for steps that all succeed.
func Values[T any](name string, values ...T) *Scripted[T] {
	steps := make([]Step[T], len(values))
	for i, v := range values {
		steps[i] = Step[T]{Value: v}
	}

	return NewScripted(name, steps...)
}

func (s *Scripted[T]) Name() string {
	return s.name
}

// Calls is the number of Fetch calls so far.
func (s *Scripted[T]) Calls() int {
	return int(s.calls.Load())
}

// Append adds steps after the current script.
func (s *Scripted[T]) Append(steps ...Step[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.steps = append(s.steps, steps...)
}

func (s *Scripted[T]) Fetch(ctx context.Context) (T, error) {
	s.calls.Add(1)

	step := s.take()

	var zero T

	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return zero, source.Wrap(s.name, ctx.Err())
		}
	}

	if step.Gate != nil {
		select {
		case <-step.Gate:
		case <-ctx.Done():
			return zero, source.Wrap(s.name, ctx.Err())
		}
	}

	if step.Err != nil {
		return zero, source.Wrap(s.name, step.Err)
	}

	return step.Value, nil
}

func (s *Scripted[T]) take() Step[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return Step[T]{}
	}

	if s.next >= len(s.steps) {
		return s.steps[len(s.steps)-1]
	}

	step := s.steps[s.next]
	s.next++

	return step
}

// Unreachable is a connection failure for name.
func Unreachable(name string) error {
	return source.NewError(name, source.KindUnreachable, errConnectionRefused)
}
