package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfreeman451/opsdeck/pkg/config"
	"github.com/mfreeman451/opsdeck/pkg/graph"
	"github.com/mfreeman451/opsdeck/pkg/models"
)

// runGraph lays out the configured services plus every edge endpoint. No
// source is contacted, so every state is unknown.
func runGraph(cmd *cobra.Command, _ []string) error {
	cfg, err := loadOptionalConfig(configPath)
	if err != nil {
		return err
	}

	edges := cfg.Graph.Edges

	path := edgesPath
	if path == "" {
		path = cfg.Graph.EdgesFile
	}

	if path != "" {
		edges, err = graph.LoadEdges(path)
		if err != nil {
			return err
		}
	}

	g := graph.Build(graphEntities(cfg.Sources.Probes.Services, edges), edges, cfg.Graph.Layout())

	return writeJSON(cmd.OutOrStdout(), graph.Highlight(g, selectedID))
}

// loadOptionalConfig falls back to defaults when the default config file is
// absent, so the graph command works with --edges alone.
func loadOptionalConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

func graphEntities(services []config.ServiceTarget, edges []models.DependencyEdge) []models.ServiceEntity {
	entities := make([]models.ServiceEntity, 0, len(services))
	seen := make(map[string]struct{}, len(services))

	add := func(e models.ServiceEntity) {
		if _, ok := seen[e.ID]; ok {
			return
		}

		seen[e.ID] = struct{}{}
		entities = append(entities, e)
	}

	for _, s := range services {
		name := s.Name
		if name == "" {
			name = s.ID
		}

		add(models.ServiceEntity{ID: s.ID, Name: name, Category: s.Category, State: models.ServiceUnknown})
	}

	for _, e := range edges {
		add(models.ServiceEntity{ID: e.From, Name: e.From, State: models.ServiceUnknown})
		add(models.ServiceEntity{ID: e.To, Name: e.To, State: models.ServiceUnknown})
	}

	return entities
}
