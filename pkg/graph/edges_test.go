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

package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

func TestParseEdges(t *testing.T) {
	edges, err := ParseEdges([]byte(`
edges:
  - {from: n8n, to: postgres}
  - from: " comfy "
    to: ollama
    kind: soft
`))
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, models.EdgeHard, edges[0].Kind)
	assert.Equal(t, "comfy", edges[1].From)

	_, err = ParseEdges([]byte("edges:\n  - {from: a, to: b, kind: maybe}\n"))
	assert.ErrorIs(t, err, errInvalidEdgeKind)

	_, err = ParseEdges([]byte("edges:\n  - {from: a}\n"))
	assert.ErrorIs(t, err, errEmptyEndpoint)

	_, err = ParseEdges([]byte("edges:\n  - {from: a, to: b, weight: 3}\n"))
	assert.Error(t, err, "unknown fields are rejected")

	empty, err := ParseEdges(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadEdgesErrors(t *testing.T) {
	_, err := LoadEdges("")
	assert.ErrorIs(t, err, errNoEdgesFile)

	_, err = LoadEdges(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEdgeStoreReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.yaml")
	require.NoError(t, os.WriteFile(path, []byte("edges:\n  - {from: a, to: b}\n"), 0o600))

	store, err := NewEdgeStore(path, nil, nil)
	require.NoError(t, err)
	require.Len(t, store.Edges(), 1)

	changed := make(chan int, 4)
	store.OnChange(func(e []models.DependencyEdge) { changed <- len(e) })

	require.NoError(t, store.Watch(context.Background()))
	defer store.Stop()

	// a broken file keeps the old list
	require.NoError(t, os.WriteFile(path, []byte("edges: [\n"), 0o600))
	time.Sleep(3 * defaultDebounce)
	assert.Len(t, store.Edges(), 1)

	require.NoError(t, os.WriteFile(path, []byte("edges:\n  - {from: a, to: b}\n  - {from: b, to: c, kind: soft}\n"), 0o600))

	select {
	case n := <-changed:
		assert.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("edge list was not reloaded")
	}

	assert.Len(t, store.Edges(), 2)
}

func TestEdgeStoreStatic(t *testing.T) {
	store, err := NewEdgeStore("", []models.DependencyEdge{{From: "a", To: "b"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EdgeHard, store.Edges()[0].Kind)
	assert.ErrorIs(t, store.Watch(context.Background()), errNoEdgesFile)
	store.Stop()

	_, err = NewEdgeStore("", []models.DependencyEdge{{From: "a"}}, nil)
	assert.Error(t, err)
}
