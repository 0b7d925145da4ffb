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

package panel

import (
	"context"
	"sync"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/poller"
)

// Shell is the feed-backed part every data panel shares: state machine,
// staleness, scoped errors and the last action.
type Shell[T any] struct {
	id         string
	kind       string
	title      string
	feed       poller.Feed[T]
	staleAfter time.Duration

	mu     sync.RWMutex
	action *ActionState
}

// NewShell wraps feed. staleAfter of zero disables the stale flag.
func NewShell[T any](id, kind, title string, feed poller.Feed[T], staleAfter time.Duration) *Shell[T] {
	return &Shell[T]{
		id:         id,
		kind:       kind,
		title:      title,
		feed:       feed,
		staleAfter: staleAfter,
	}
}

func (s *Shell[T]) ID() string {
	return s.id
}

func (s *Shell[T]) Kind() string {
	return s.kind
}

func (s *Shell[T]) Title() string {
	return s.title
}

// Feed returns the underlying feed.
func (s *Shell[T]) Feed() poller.Feed[T] {
	return s.feed
}

func (s *Shell[T]) Retry(ctx context.Context) {
	s.feed.Refresh(ctx)
}

// Actions is empty for read-only panels.
func (*Shell[T]) Actions() []string {
	return nil
}

func (*Shell[T]) Execute(context.Context, ActionRequest, string) error {
	return ErrUnsupportedAction
}

func (s *Shell[T]) TrackAction(state ActionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.action = &state
}

// LastAction returns a copy of the last tracked action, if any.
func (s *Shell[T]) LastAction() *ActionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.action == nil {
		return nil
	}

	a := *s.action

	return &a
}

// frame fills the shell fields of a Frame from the current feed state. The
// caller adds Body, Actions and header controls.
func (s *Shell[T]) frame(opts RenderOptions, now time.Time) (Frame, poller.State[T]) {
	st := s.feed.Snapshot()

	f := Frame{
		ID:     s.id,
		Kind:   s.kind,
		Mode:   opts.Mode,
		Height: opts.Height,
		Status: status(st.HasValue, st.Loading, st.Err != nil),
		Stale:  st.Stale(now, s.staleAfter),
		Action: s.LastAction(),
	}

	if opts.Header {
		f.Header = &Header{Title: s.title}
	}

	if st.Err != nil {
		f.Error = &ErrorInfo{
			Source:  st.Err.Source,
			Kind:    string(st.Err.Kind),
			Message: st.Err.Error(),
			Retry:   true,
		}
	}

	if st.HasValue {
		updated := st.UpdatedAt
		f.UpdatedAt = &updated
		f.Updated = derived.RelativeTime(updated, now)
	}

	if !opts.Compact() {
		f.Footer = footer(f)
	}

	return f, st
}

func status(hasValue, loading, failed bool) Status {
	switch {
	case loading && (failed || !hasValue):
		return StatusLoading
	case failed:
		return StatusError
	case !hasValue:
		return StatusLoading
	default:
		return StatusReady
	}
}

func footer(f Frame) string {
	switch {
	case f.UpdatedAt == nil && f.Status == StatusError:
		return "no data yet"
	case f.UpdatedAt == nil:
		return "waiting for first update"
	case f.Stale:
		return "stale, updated " + f.Updated
	default:
		return "updated " + f.Updated
	}
}

// limit trims items to n when n is positive.
func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}

	return items
}

func listLimit(opts RenderOptions) int {
	if opts.Compact() {
		return compactListLimit
	}

	return fullListLimit
}
