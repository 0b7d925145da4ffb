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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/opsdeck/pkg/source"
	"github.com/mfreeman451/opsdeck/pkg/source/fixture"
)

func decodeInts(b []byte) ([]int, error) {
	var v []int
	err := json.Unmarshal(b, &v)

	return v, err
}

func TestStreamAppliesPushedSnapshots(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[1,2]`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[1,2,3]`))

		<-release
	}))
	defer srv.Close()
	defer close(release)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStream[[]int]("imagegen", url, decodeInts, nil, Config{Interval: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		st := s.Snapshot()
		return len(st.Value) == 3 && st.Err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestStreamDialFailureKeepsFallbackValue(t *testing.T) {
	fallback := fixture.Values("imagegen", []int{9})
	s := NewStream[[]int]("imagegen", "ws://127.0.0.1:1/ws/queue", decodeInts, fallback,
		Config{Interval: time.Hour, Timeout: 200 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Snapshot().Err != nil }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	st := s.Snapshot()
	assert.Equal(t, []int{9}, st.Value)
	assert.Equal(t, source.KindUnreachable, st.Err.Kind)
	assert.Equal(t, 1, fallback.Calls())
}

func TestStreamRefreshWithoutFallback(t *testing.T) {
	s := NewStream[[]int]("imagegen", "ws://127.0.0.1:1", decodeInts, nil, Config{})

	st := s.Refresh(context.Background())
	assert.False(t, st.HasValue)
	assert.Equal(t, "imagegen", st.Source)
}
