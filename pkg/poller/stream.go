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
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mfreeman451/opsdeck/pkg/source"
)

// DecodeFunc parses one stream message into a full value.
type DecodeFunc[T any] func([]byte) (T, error)

// Stream is a Feed backed by a websocket that pushes complete snapshots.
// Config.Interval is the reconnect delay and Config.Timeout the handshake
// timeout. An optional fallback fetcher serves Refresh and seeds the state
// before the first message.
type Stream[T any] struct {
	name     string
	url      string
	decode   DecodeFunc[T]
	fallback source.Fetcher[T]
	config   Config
	dialer   *websocket.Dialer
	logger   *zap.Logger
	state    *holder[T]
	group    singleflight.Group

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	wg      sync.WaitGroup
}

var _ Feed[struct{}] = (*Stream[struct{}])(nil)

func NewStream[T any](
	name, url string,
	decode DecodeFunc[T],
	fallback source.Fetcher[T],
	config Config,
	opts ...Option[T]) *Stream[T] {
	o := buildOptions(opts)
	config = config.withDefaults()

	return &Stream[T]{
		name:     name,
		url:      url,
		decode:   decode,
		fallback: fallback,
		config:   config,
		dialer:   &websocket.Dialer{HandshakeTimeout: config.Timeout},
		logger:   o.logger.With(zap.String("source", name), zap.String("transport", "websocket")),
		state:    newHolder(name, o),
	}
}

func (s *Stream[T]) Name() string {
	return s.name
}

func (s *Stream[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	if s.started {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)

	go s.run(s.ctx)

	return nil
}

// Stop closes the connection and waits for the reader to exit.
func (s *Stream[T]) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.wg.Wait()
}

func (s *Stream[T]) Snapshot() State[T] {
	return s.state.snapshot()
}

func (s *Stream[T]) Subscribe(l Listener[T]) func() {
	return s.state.subscribe(l)
}

// Refresh fetches through the fallback client with the same freshness rule as
// Poller.Refresh. Without a fallback it returns the current state.
func (s *Stream[T]) Refresh(ctx context.Context) State[T] {
	if s.fallback == nil {
		return s.Snapshot()
	}

	s.mu.Lock()
	fetchCtx := s.ctx
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return s.Snapshot()
	}

	if fetchCtx == nil {
		fetchCtx = context.Background()
	}

	since := s.state.issuedSeq()

	st := s.shared(ctx, fetchCtx)
	if st.Seq > since || ctx.Err() != nil || fetchCtx.Err() != nil {
		return st
	}

	return s.shared(ctx, fetchCtx)
}

func (s *Stream[T]) shared(waitCtx, fetchCtx context.Context) State[T] {
	ch := s.group.DoChan(s.name, func() (interface{}, error) {
		seq := s.state.begin()

		fctx, cancel := context.WithTimeout(fetchCtx, s.config.Timeout)
		defer cancel()

		v, err := s.fallback.Fetch(fctx)
		if fetchCtx.Err() != nil {
			return s.state.abandon(seq), nil
		}

		return s.state.apply(seq, v, err), nil
	})

	select {
	case res := <-ch:
		return res.Val.(State[T])
	case <-waitCtx.Done():
		return s.Snapshot()
	}
}

func (s *Stream[T]) run(ctx context.Context) {
	defer s.wg.Done()

	if s.fallback != nil {
		s.Refresh(ctx)
	}

	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("Stream disconnected", zap.Error(err), zap.Duration("retry_in", s.config.Interval))
		s.state.apply(s.state.begin(), s.Snapshot().Value, asSourceError(s.name, err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.Interval):
		}
	}
}

// consume reads one connection until it fails.
func (s *Stream[T]) consume(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return &source.Error{
				Source:     s.name,
				Kind:       source.KindHTTP,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("websocket dial failed: %w", err),
			}
		}

		return fmt.Errorf("websocket dial failed: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
	}()

	s.logger.Info("Stream connected", zap.String("url", s.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read failed: %w", err)
		}

		seq := s.state.begin()

		v, err := s.decode(data)
		if err != nil {
			s.state.apply(seq, v, source.NewError(s.name, source.KindParse, err))

			continue
		}

		s.state.apply(seq, v, nil)
	}
}
