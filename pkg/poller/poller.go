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
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

// Poller fetches one source on its own ticker.
type Poller[T any] struct {
	fetcher  source.Fetcher[T]
	config   Config
	logger   *zap.Logger
	recorder FetchRecorder
	now      func() time.Time
	state    *holder[T]
	group    singleflight.Group

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	wg      sync.WaitGroup
}

var _ Feed[struct{}] = (*Poller[struct{}])(nil)

// New creates a poller. It does nothing until Start.
func New[T any](fetcher source.Fetcher[T], config Config, opts ...Option[T]) *Poller[T] {
	o := buildOptions(opts)

	return &Poller[T]{
		fetcher:  fetcher,
		config:   config.withDefaults(),
		logger:   o.logger.With(zap.String("source", fetcher.Name())),
		recorder: o.recorder,
		now:      o.now,
		state:    newHolder(fetcher.Name(), o),
	}
}

func (p *Poller[T]) Name() string {
	return p.fetcher.Name()
}

// Interval is the configured poll interval.
func (p *Poller[T]) Interval() time.Duration {
	return p.config.Interval
}

// Start fetches immediately and then on every tick until ctx ends or Stop is
// called.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}

	if p.started {
		return ErrAlreadyStarted
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	p.wg.Add(1)

	go p.run(p.ctx)

	return nil
}

func (p *Poller[T]) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.logger.Debug("Starting poller", zap.Duration("interval", p.config.Interval))

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Poller stopped")

			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop cancels the ticker and any fetch in flight and waits for the loop to
// exit. It is safe to call more than once, and before Start.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	p.wg.Wait()
}

func (p *Poller[T]) Snapshot() State[T] {
	return p.state.snapshot()
}

func (p *Poller[T]) Subscribe(l Listener[T]) func() {
	return p.state.subscribe(l)
}

// Refresh fetches outside the schedule and returns a state no older than the
// call. A fetch already in flight may have read the backend before the caller's
// write landed, so after joining one Refresh waits for one more, shared with any
// other caller in the same position. ctx bounds only the wait; the fetch itself
// belongs to the poller and ends with Stop.
func (p *Poller[T]) Refresh(ctx context.Context) State[T] {
	fetchCtx, ok := p.lifetime()
	if !ok {
		return p.Snapshot()
	}

	since := p.state.issuedSeq()

	st := p.shared(ctx, fetchCtx)
	if st.Seq > since || ctx.Err() != nil || fetchCtx.Err() != nil {
		return st
	}

	return p.shared(ctx, fetchCtx)
}

func (p *Poller[T]) lifetime() (context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, false
	}

	if p.ctx == nil {
		return context.Background(), true
	}

	return p.ctx, p.ctx.Err() == nil
}

func (p *Poller[T]) poll(ctx context.Context) {
	st := p.shared(ctx, ctx)
	if st.Err != nil {
		p.logger.Warn("Fetch failed",
			zap.String("kind", string(st.Err.Kind)),
			zap.Bool("has_value", st.HasValue),
			zap.Error(st.Err))
	}
}

func (p *Poller[T]) shared(waitCtx, fetchCtx context.Context) State[T] {
	ch := p.group.DoChan(p.fetcher.Name(), func() (interface{}, error) {
		return p.fetch(fetchCtx), nil
	})

	select {
	case res := <-ch:
		return res.Val.(State[T])
	case <-waitCtx.Done():
		return p.Snapshot()
	}
}

func (p *Poller[T]) fetch(ctx context.Context) State[T] {
	seq := p.state.begin()

	fctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := p.now()
	v, err := p.fetcher.Fetch(fctx)

	if p.recorder != nil {
		p.recorder.RecordFetch(p.fetcher.Name(), p.now().Sub(start), err)
	}

	// torn down while fetching: nobody observes this result any more
	if ctx.Err() != nil {
		return p.state.abandon(seq)
	}

	return p.state.apply(seq, v, err)
}
