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

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/db"
	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/graph"
	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/normalize"
	"github.com/mfreeman451/opsdeck/pkg/panel"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/source"
	"github.com/mfreeman451/opsdeck/pkg/source/fixture"
	"github.com/mfreeman451/opsdeck/pkg/view"
)

var now = fixture.Epoch

type scenes struct{}

func (scenes) Toggle(context.Context, string, string) error        { return nil }
func (scenes) ActivateScene(context.Context, string, string) error { return nil }

func feed[T any](f source.Fetcher[T]) *poller.Poller[T] {
	p := poller.New[T](f, poller.Config{Interval: time.Hour},
		poller.WithClock[T](func() time.Time { return now }))
	p.Refresh(context.Background())

	return p
}

type testEnv struct {
	srv      *APIServer
	composer *view.Composer
	manager  *metrics.Manager
	store    *db.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()

	store, err := db.New(ctx, filepath.Join(t.TempDir(), "api.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	nodes := feed[models.ClusterSnapshot](fixture.Values("prometheus",
		normalize.Nodes(fixture.Cluster(), normalize.DefaultNodeLabels())))
	services := feed[[]models.ServiceEntity](fixture.Values("probes", []models.ServiceEntity{
		{ID: "n8n", Name: "n8n", Category: "automation", State: models.ServiceUp},
		{ID: "comfy", Name: "ComfyUI", Category: "generation", State: models.ServiceDown},
	}))
	home := feed[[]models.DeviceEntity](fixture.Values("homeassistant", normalize.Devices(fixture.States())))

	reg, err := panel.NewRegistry(
		panel.NewNodesPanel(nodes, derived.DefaultThresholds(), 0),
		panel.NewServicesPanel(services, derived.DefaultThresholds(), 0),
		panel.NewHomePanel(home, scenes{}, 0),
		panel.NewGraphPanel(services, nodes, panel.StaticEdges{{From: "n8n", To: "gpu-01", Kind: models.EdgeHard}}, graph.DefaultLayout(), 0),
		panel.NewEmbedPanel("grafana", "Grafana", panel.EmbedConfig{BaseURL: "http://grafana:3000", DashboardID: "gpu"}),
	)
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(promReg)
	manager := metrics.NewManager(models.MetricsConfig{Enabled: true, Retention: 10, MaxNodes: 10}, collectors, nil)
	composer := view.NewComposer(reg)
	dispatcher := panel.NewDispatcher(store, store, collectors, panel.DispatcherConfig{}, nil)

	srv := NewAPIServer(reg, composer, dispatcher,
		WithMetrics(manager),
		WithActivity(store),
		WithGatherer(promReg),
		WithCollectors(collectors),
		WithClock(func() time.Time { return now }),
	)

	return &testEnv{srv: srv, composer: composer, manager: manager, store: store}
}

func (e *testEnv) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/pages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view.OverviewPage, decode[[]string](t, rec)[0])

	rec = env.do(t, http.MethodGet, "/api/pages/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	page := decode[view.Page](t, rec)
	assert.Equal(t, view.OverviewPage, page.Name)
	assert.Len(t, page.Panels, 5)
	assert.NotEmpty(t, page.Tiles)

	rec = env.do(t, http.MethodGet, "/api/pages/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "unknown page")
}

func TestPanels(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/panels", "")
	require.Equal(t, http.StatusOK, rec.Code)

	infos := decode[[]PanelInfo](t, rec)
	require.Len(t, infos, 5)
	assert.Equal(t, "nodes", infos[0].ID)
	assert.Equal(t, []string{panel.ActionToggle, panel.ActionScene}, infos[2].Actions)

	rec = env.do(t, http.MethodGet, "/api/panels/nodes?mode=compact", "")
	require.Equal(t, http.StatusOK, rec.Code)

	f := decode[map[string]any](t, rec)
	assert.Equal(t, "compact", f["mode"])
	assert.Equal(t, float64(200), f["height"])
	assert.Nil(t, f["header"])

	rec = env.do(t, http.MethodGet, "/api/panels/nodes?mode=full&height=480", "")
	require.Equal(t, http.StatusOK, rec.Code)

	f = decode[map[string]any](t, rec)
	assert.Equal(t, float64(480), f["height"])
	assert.NotNil(t, f["header"])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/panels/nodes?mode=tiny", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/panels/nodes?header=maybe", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/panels/missing", "").Code)

	rec = env.do(t, http.MethodPost, "/api/panels/services/retry?mode=compact", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rec)["status"])
}

func TestActions(t *testing.T) {
	env := newTestEnv(t)

	body := `{"kind":"scene","target_id":"scene.movie"}`

	rec := env.do(t, http.MethodPost, "/api/panels/home/actions", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[panel.ActionResult](t, rec)
	assert.Equal(t, panel.ActionSuccess, res.Status)
	assert.Equal(t, "k-1", res.Key)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "scene.movie", env.composer.Selection().ActiveScene)

	rec = env.do(t, http.MethodPost, "/api/panels/home/actions", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[panel.ActionResult](t, rec).Duplicate)

	// only the first dispatch reached the backend and the audit log
	rec = env.do(t, http.MethodGet, "/api/activity?since=1000h", "")
	require.Equal(t, http.StatusOK, rec.Code)

	events := decode[[]models.ActivityEvent](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "home.scene", events[0].Action)
	assert.Equal(t, models.ActorUser, events[0].ActorKind)

	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/panels/nodes/actions", `{"kind":"toggle"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/panels/home/actions", `{"kind":`).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/api/panels/home/actions", `{"kind":"toggle","bogus":1}`).Code)
	assert.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodPost, "/api/panels/missing/actions", `{"kind":"toggle"}`).Code)

	rec = env.do(t, http.MethodOptions, "/api/panels/home/actions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestActivityParams(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/activity?since=yesterday", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/activity?limit=-1", "").Code)

	rec := env.do(t, http.MethodGet, "/api/activity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSelectionAndGraph(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/selection", `{"selected":"n8n"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "n8n", decode[view.Selection](t, rec).Selected)

	rec = env.do(t, http.MethodGet, "/api/selection", "")
	assert.Equal(t, "n8n", decode[view.Selection](t, rec).Selected)

	rec = env.do(t, http.MethodGet, "/api/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[panel.GraphBody](t, rec)
	assert.Equal(t, "n8n", body.Selected)
	assert.Equal(t, []string{"gpu-01"}, body.Neighbors)
	assert.NotEmpty(t, body.Nodes)
}

func TestFrameReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/panels/grafana/frame", `{"loaded":false,"message":"refused to connect"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/panels/grafana", "")
	f := decode[panel.Frame](t, rec)
	assert.Equal(t, panel.StatusError, f.Status)
	require.NotNil(t, f.Error)
	assert.Equal(t, "refused to connect", f.Error.Message)

	assert.Equal(t, http.StatusConflict,
		env.do(t, http.MethodPost, "/api/panels/nodes/frame", `{"loaded":true}`).Code)
}

func TestSourcesAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	env.manager.RecordFetch("prometheus", 20*time.Millisecond, nil)
	env.manager.RecordFetch("prometheus", 30*time.Millisecond, source.NewError("prometheus", source.KindTimeout, context.DeadlineExceeded))

	rec := env.do(t, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	sources := decode[[]SourceStatus](t, rec)
	require.Len(t, sources, 1)
	assert.Equal(t, "prometheus", sources[0].Name)
	assert.Len(t, sources[0].Metrics, 2)
	require.NotNil(t, sources[0].Last)
	assert.Equal(t, string(source.KindTimeout), sources[0].Last.Outcome)

	rec = env.do(t, http.MethodGet, "/api/sources?history=false", "")
	assert.Empty(t, decode[[]SourceStatus](t, rec)[0].Metrics)

	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `opsdeck_source_fetch_total{outcome="timeout",source="prometheus"} 1`)
}

func TestWebsocketPush(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go env.srv.hub.Run(ctx)

	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
		_ = conn.Close()
	}()

	read := func() view.Page {
		t.Helper()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var page view.Page
		require.NoError(t, conn.ReadJSON(&page))

		return page
	}

	first := read()
	assert.Equal(t, view.OverviewPage, first.Name)
	assert.Empty(t, first.Selection.Selected)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgSelect, ID: "n8n"}))

	second := read()
	assert.Equal(t, "n8n", second.Selection.Selected)
	assert.Equal(t, "n8n", env.composer.Selection().Selected)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgPage, Page: "graph"}))
	assert.Equal(t, "graph", read().Name)

	assert.Equal(t, 1, env.srv.hub.Clients())

	_, resp2, err := websocket.DefaultDialer.Dial(url+"?page=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp2)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	_ = resp2.Body.Close()
}
