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

package lifecycle

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeService struct {
	startErr error
	stopErr  error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (f *fakeService) Start(ctx context.Context) error {
	f.started.Store(true)

	if f.startErr != nil {
		return f.startErr
	}

	<-ctx.Done()

	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.stopped.Store(true)
	return f.stopErr
}

func run(t *testing.T, ctx context.Context, svc Service, signals <-chan os.Signal) error {
	t.Helper()

	done := make(chan error, 1)

	go func() {
		done <- RunServer(ctx, &ServerOptions{ServiceName: "opsdeck", Service: svc, Signals: signals})
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("RunServer did not return")
		return nil
	}
}

func TestRunServer_Signal(t *testing.T) {
	svc := &fakeService{}
	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGTERM

	require.NoError(t, run(t, context.Background(), svc, signals))
	assert.True(t, svc.stopped.Load())
}

func TestRunServer_ContextCanceled(t *testing.T) {
	svc := &fakeService{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, run(t, ctx, svc, make(chan os.Signal)))
	assert.True(t, svc.stopped.Load())
}

func TestRunServer_ServiceError(t *testing.T) {
	svc := &fakeService{startErr: errBoom, stopErr: context.DeadlineExceeded}

	err := run(t, context.Background(), svc, make(chan os.Signal))
	require.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, svc.stopped.Load())
}
