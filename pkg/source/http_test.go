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

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientErrorKinds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value": 3}`))
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value":`))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewHTTPClient("test", srv.URL+"/", WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	var dst struct {
		Value int `json:"value"`
	}

	require.NoError(t, c.GetJSON(context.Background(), "/ok", nil, &dst))
	assert.Equal(t, 3, dst.Value)

	err = c.GetJSON(context.Background(), "/bad", nil, &dst)
	assert.Equal(t, KindHTTP, KindOf(err))
	assert.True(t, errors.Is(err, ErrHTTP))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Contains(t, se.Error(), "nope")

	err = c.GetJSON(context.Background(), "/garbage", nil, &dst)
	assert.Equal(t, KindParse, KindOf(err))

	err = c.GetJSON(context.Background(), "/slow", nil, &dst)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestHTTPClientUnreachable(t *testing.T) {
	c, err := NewHTTPClient("test", "http://127.0.0.1:1")
	require.NoError(t, err)

	err = c.GetJSON(context.Background(), "/", nil, nil)
	assert.Equal(t, KindUnreachable, KindOf(err))
}

func TestHTTPClientSendsHeaders(t *testing.T) {
	var got http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewHTTPClient("test", srv.URL, WithHeaders(map[string]string{"Authorization": "Bearer t"}))
	require.NoError(t, err)

	require.NoError(t, c.PostJSON(context.Background(), "/x", map[string]int{"a": 1}, "key-1", nil))
	assert.Equal(t, "key-1", got.Get(IdempotencyHeader))
	assert.Equal(t, "Bearer t", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient("test", "")
	assert.ErrorIs(t, err, errEmptyBaseURL)
}

func TestURLJoinsPath(t *testing.T) {
	c, err := NewHTTPClient("test", "http://example.com/prefix/")
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/prefix/api/v1/query?query=up",
		c.URL("/api/v1/query", map[string][]string{"query": {"up"}}))
}

func TestFetchFuncAndMap(t *testing.T) {
	f := FetchFunc[int]{SourceName: "x", Fn: func(context.Context) (int, error) { return 0, errors.New("dial") }}

	_, err := f.Fetch(context.Background())
	assert.Equal(t, KindUnreachable, KindOf(err))

	doubled := Map[int, int](FetchFunc[int]{SourceName: "y", Fn: func(context.Context) (int, error) { return 4, nil }},
		func(v int) int { return v * 2 })

	v, err := doubled.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, v)
	assert.Equal(t, "y", doubled.Name())
}
