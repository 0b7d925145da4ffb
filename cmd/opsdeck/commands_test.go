package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfreeman451/opsdeck/pkg/config"
	"github.com/mfreeman451/opsdeck/pkg/core"
	"github.com/mfreeman451/opsdeck/pkg/graph"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/view"
)

const testConfig = `listen_addr: ":8090"
db_path: ./opsdeck.db
sources:
  probes:
    services:
      - {id: api, name: API, category: core, url: "http://api.local/health"}
`

const testEdges = `edges:
  - {from: api, to: postgres, kind: hard}
  - {from: worker, to: api, kind: soft}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	edgesPath, selectedID = "", ""

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func TestGraphCommand(t *testing.T) {
	cfgPath := writeFile(t, "opsdeck.yaml", testConfig)
	edges := writeFile(t, "edges.yaml", testEdges)

	out, err := execute(t, "graph", "--config", cfgPath, "--edges", edges, "--select", "api")
	require.NoError(t, err)

	var v graph.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))

	assert.Equal(t, "api", v.Selected)
	assert.Equal(t, []string{"postgres", "worker"}, v.Neighbors)
	require.Len(t, v.Nodes, 3)
	require.Len(t, v.Edges, 2)

	for _, n := range v.Nodes {
		assert.Equal(t, models.ServiceUnknown, n.State)

		if n.ID == "api" {
			assert.Equal(t, "API", n.Name)
			assert.Equal(t, "core", n.Category)
			assert.True(t, n.Selected)
		}
	}
}

func TestGraphCommandBadEdges(t *testing.T) {
	cfgPath := writeFile(t, "opsdeck.yaml", testConfig)
	edges := writeFile(t, "edges.yaml", "edges:\n  - {from: api, to: db, bogus: 1}\n")

	_, err := execute(t, "graph", "--config", cfgPath, "--edges", edges)
	require.Error(t, err)
}

func TestGraphEntitiesDeduplicates(t *testing.T) {
	entities := graphEntities(nil, []models.DependencyEdge{
		{From: "a", To: "b"},
		{From: "b", To: "a"},
	})

	require.Len(t, entities, 2)
	assert.Equal(t, "a", entities[0].ID)
	assert.Equal(t, "b", entities[1].ID)
}

func TestCommandsRegistered(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.Subset(t, names, []string{"serve", "snapshot", "graph", "health"})
}

func stubSnapshotService(t *testing.T, svc core.CoreService, seen *config.Config) {
	t.Helper()

	orig := newSnapshotService
	newSnapshotService = func(_ context.Context, cfg *config.Config) (core.CoreService, error) {
		*seen = *cfg

		return svc, nil
	}

	t.Cleanup(func() { newSnapshotService = orig })
}

func TestSnapshotCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := core.NewMockCoreService(ctrl)
	svc.EXPECT().Snapshot(gomock.Any(), "services").Return(view.Page{Name: "services", Title: "Services"}, nil)
	svc.EXPECT().Stop(gomock.Any()).Return(nil)

	var seen config.Config

	stubSnapshotService(t, svc, &seen)

	out, err := execute(t, "snapshot", "--config", writeFile(t, "opsdeck.yaml", testConfig), "--page", "services")
	require.NoError(t, err)

	var page view.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, "services", page.Name)
	assert.Equal(t, "Services", page.Title)

	assert.Equal(t, "snapshot.db", filepath.Base(seen.DBPath), "one-shot renders use a scratch database")
	assert.NotEqual(t, "./opsdeck.db", seen.DBPath)
}

func TestSnapshotCommandUnknownPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := core.NewMockCoreService(ctrl)
	svc.EXPECT().Snapshot(gomock.Any(), "nope").Return(view.Page{}, errors.New("unknown page nope"))
	svc.EXPECT().Stop(gomock.Any()).Return(nil)

	var seen config.Config

	stubSnapshotService(t, svc, &seen)

	_, err := execute(t, "snapshot", "--config", writeFile(t, "opsdeck.yaml", testConfig), "--page", "nope")
	require.ErrorContains(t, err, "unknown page nope")
}
