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

package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFiltersDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"entity_id":"light.office","state":"on"},
			{"entity_id":"sensor.temp","state":"21.5"},
			{"entity_id":"scene.movie","state":"2025-03-01T10:00:00Z"}
		]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, []string{"light", "scene"})
	require.NoError(t, err)

	states, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "light.office", states[0].EntityID)
	assert.Equal(t, "scene.movie", states[1].EntityID)
}

func TestToggleAndScene(t *testing.T) {
	var calls []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		calls = append(calls, r.URL.Path+" "+body["entity_id"])

		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	require.NoError(t, c.Toggle(context.Background(), "switch.rack_fan", "k1"))
	require.NoError(t, c.ActivateScene(context.Background(), "scene.movie", "k2"))

	assert.Equal(t, []string{
		"/api/services/switch/toggle switch.rack_fan",
		"/api/services/scene/turn_on scene.movie",
	}, calls)

	assert.ErrorIs(t, c.Toggle(context.Background(), "nodomain", "k3"), errInvalidEntityID)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "light", Domain("light.office"))
	assert.Empty(t, Domain(".office"))
	assert.Empty(t, Domain("office"))
}
