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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/opsdeck/pkg/source"
	"github.com/mfreeman451/opsdeck/pkg/source/fixture"
)

func TestPollerRetainsValueOnError(t *testing.T) {
	f := fixture.NewScripted("metrics",
		fixture.Step[int]{Value: 7},
		fixture.Step[int]{Err: fixture.Unreachable("metrics")},
	)

	p := New[int](f, Config{Interval: time.Hour})
	ctx := context.Background()

	first := p.Refresh(ctx)
	require.True(t, first.HasValue)
	assert.Equal(t, 7, first.Value)
	assert.Nil(t, first.Err)

	second := p.Refresh(ctx)
	assert.Equal(t, 7, second.Value, "value must survive a failed fetch")
	require.NotNil(t, second.Err)
	assert.Equal(t, source.KindUnreachable, second.Err.Kind)
	assert.True(t, errors.Is(second.Err, source.ErrUnreachable))
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.False(t, second.Loading)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestPollerErrorClearedOnRecovery(t *testing.T) {
	f := fixture.NewScripted("queue",
		fixture.Step[string]{Err: errors.New("boom")},
		fixture.Step[string]{Value: "ok"},
	)

	p := New[string](f, Config{Interval: time.Hour})

	st := p.Refresh(context.Background())
	assert.False(t, st.HasValue)
	require.NotNil(t, st.Err)

	st = p.Refresh(context.Background())
	assert.Nil(t, st.Err)
	assert.Equal(t, "ok", st.Value)
}

func TestPollerPollsOnInterval(t *testing.T) {
	f := fixture.Values("metrics", 1)
	p := New[int](f, Config{Interval: 10 * time.Millisecond})

	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return f.Calls() >= 3 }, time.Second, 5*time.Millisecond)

	p.Stop()

	calls := f.Calls()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, calls, f.Calls(), "no fetch may run after Stop returns")
}

func TestPollerLifecycle(t *testing.T) {
	p := New[int](fixture.Values("metrics", 1), Config{Interval: time.Hour})

	p.Stop() // before Start
	p.Stop()

	assert.ErrorIs(t, p.Start(context.Background()), ErrStopped)

	q := New[int](fixture.Values("metrics", 1), Config{Interval: time.Hour})
	require.NoError(t, q.Start(context.Background()))
	assert.ErrorIs(t, q.Start(context.Background()), ErrAlreadyStarted)
	q.Stop()
	q.Stop()

	st := q.Refresh(context.Background())
	assert.Equal(t, q.Snapshot(), st, "refresh after stop must not fetch")
}

func TestPollerContextCancelStopsLoop(t *testing.T) {
	f := fixture.Values("metrics", 1)
	p := New[int](f, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	require.Eventually(t, func() bool { return f.Calls() >= 1 }, time.Second, time.Millisecond)

	cancel()

	done := make(chan struct{})

	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}

// gatedBackend serves its current version. The first fetches block on the
// given gates, one gate per call, so a test can move the backend on while a
// fetch is in flight.
type gatedBackend struct {
	version atomic.Int64
	calls   atomic.Int64
	gates   []chan struct{}
}

func (b *gatedBackend) fetcher() source.Fetcher[int64] {
	return source.FetchFunc[int64]{SourceName: "workflows", Fn: func(ctx context.Context) (int64, error) {
		n := int(b.calls.Add(1))
		v := b.version.Load()

		if n <= len(b.gates) {
			select {
			case <-b.gates[n-1]:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		return v, nil
	}}
}

func TestRefreshAfterWriteStartsNewFetch(t *testing.T) {
	gate := make(chan struct{})
	backend := &gatedBackend{gates: []chan struct{}{gate}}
	p := New[int64](backend.fetcher(), Config{Interval: time.Hour})

	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)

	// the scheduled fetch has read version 0 and is still running
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, time.Millisecond)

	backend.version.Store(1)

	done := make(chan State[int64], 1)

	go func() { done <- p.Refresh(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	close(gate)

	select {
	case st := <-done:
		assert.Equal(t, int64(1), st.Value)
		assert.True(t, st.HasValue)
	case <-time.After(time.Second):
		t.Fatal("refresh did not return")
	}

	assert.Equal(t, int64(2), backend.calls.Load())
	assert.Equal(t, int64(1), p.Snapshot().Value)
}

func TestRefreshCallersShareFollowUpFetch(t *testing.T) {
	first, second := make(chan struct{}), make(chan struct{})
	backend := &gatedBackend{gates: []chan struct{}{first, second}}
	p := New[int64](backend.fetcher(), Config{Interval: time.Hour})

	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)

	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, time.Millisecond)

	backend.version.Store(7)

	var wg sync.WaitGroup

	results := make([]State[int64], 2)

	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()
			results[i] = p.Refresh(context.Background())
		}()
	}

	// give both callers time to join the scheduled fetch
	time.Sleep(20 * time.Millisecond)
	close(first)

	require.Eventually(t, func() bool { return backend.calls.Load() == 2 }, time.Second, time.Millisecond)

	// and then the single follow-up
	time.Sleep(20 * time.Millisecond)
	close(second)
	wg.Wait()

	assert.Equal(t, int64(2), backend.calls.Load())
	assert.Equal(t, results[0].Seq, results[1].Seq)
	assert.Equal(t, int64(7), results[0].Value)
	assert.Equal(t, int64(7), results[1].Value)
}

func TestRefreshWithoutFetchInFlightFetchesOnce(t *testing.T) {
	f := fixture.Values("home", 3)
	p := New[int](f, Config{Interval: time.Hour})

	st := p.Refresh(context.Background())

	assert.Equal(t, 3, st.Value)
	assert.Equal(t, 1, f.Calls())
}

func TestStopAbandonsInFlightFetch(t *testing.T) {
	gate := make(chan struct{})
	f := fixture.NewScripted("home", fixture.Step[int]{Value: 1, Gate: gate})
	p := New[int](f, Config{Interval: time.Hour})

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)

	p.Stop()

	st := p.Snapshot()
	assert.False(t, st.Loading)
	assert.False(t, st.HasValue)
	assert.Nil(t, st.Err, "a cancelled fetch is not reported as a source error")
}

func TestOutOfOrderResultDiscarded(t *testing.T) {
	h := newHolder("queue", buildOptions[string](nil))

	older := h.begin()
	newer := h.begin()

	st := h.apply(newer, "new", nil)
	assert.Equal(t, "new", st.Value)
	assert.False(t, st.Loading)

	st = h.apply(older, "old", nil)
	assert.Equal(t, "new", st.Value)
	assert.Equal(t, newer, st.Seq)
}

func TestMergeAndSubscribe(t *testing.T) {
	f := fixture.Values("queue", 1, 2, 3)
	p := New[int](f, Config{Interval: time.Hour},
		WithMerge[int](func(prev, next int) int { return prev + next }))

	var seen []int

	unsubscribe := p.Subscribe(func(st State[int]) { seen = append(seen, st.Value) })

	p.Refresh(context.Background())
	p.Refresh(context.Background())
	unsubscribe()
	st := p.Refresh(context.Background())

	assert.Equal(t, []int{1, 3}, seen)
	assert.Equal(t, 6, st.Value)
}

type recordingRecorder struct {
	mu    sync.Mutex
	calls []error
}

func (r *recordingRecorder) RecordFetch(_ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, err)
}

func TestRecorderSeesEveryFetch(t *testing.T) {
	rec := &recordingRecorder{}
	f := fixture.NewScripted("alerts",
		fixture.Step[int]{Value: 1},
		fixture.Step[int]{Err: fixture.Unreachable("alerts")},
	)

	p := New[int](f, Config{Interval: time.Hour}, WithRecorder[int](rec))
	p.Refresh(context.Background())
	p.Refresh(context.Background())

	require.Len(t, rec.calls, 2)
	assert.NoError(t, rec.calls[0])
	assert.Error(t, rec.calls[1])
}

func TestStateStale(t *testing.T) {
	now := fixture.Epoch

	st := State[int]{HasValue: true, UpdatedAt: now.Add(-31 * time.Second)}
	assert.True(t, st.Stale(now, 30*time.Second))
	assert.False(t, st.Stale(now, time.Minute))
	assert.False(t, State[int]{}.Stale(now, time.Second), "no value is not stale, it is empty")
}
