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

package panel

import (
	"context"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/graph"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/poller"
)

const computeCategory = "compute"

// EdgeSource supplies the current declared edge list.
type EdgeSource interface {
	Edges() []models.DependencyEdge
}

// StaticEdges is an EdgeSource over a fixed list.
type StaticEdges []models.DependencyEdge

func (s StaticEdges) Edges() []models.DependencyEdge {
	return s
}

type GraphBody struct {
	graph.View
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GraphPanel renders services and compute nodes as one relationship graph.
type GraphPanel struct {
	*Shell[[]models.ServiceEntity]
	nodes  poller.Feed[models.ClusterSnapshot]
	edges  EdgeSource
	layout graph.Layout
}

// NewGraphPanel builds the panel. nodes may be nil, in which case only
// services are drawn.
func NewGraphPanel(
	services poller.Feed[[]models.ServiceEntity],
	nodes poller.Feed[models.ClusterSnapshot],
	edges EdgeSource,
	layout graph.Layout,
	staleAfter time.Duration,
) *GraphPanel {
	if edges == nil {
		edges = StaticEdges(nil)
	}

	return &GraphPanel{
		Shell:  NewShell("graph", "relationship_graph", "Dependencies", services, staleAfter),
		nodes:  nodes,
		edges:  edges,
		layout: layout,
	}
}

func (p *GraphPanel) Retry(ctx context.Context) {
	p.Shell.Retry(ctx)

	if p.nodes != nil {
		p.nodes.Refresh(ctx)
	}
}

// Entities is the known entity set: services plus compute nodes.
func (p *GraphPanel) Entities() []models.ServiceEntity {
	var entities []models.ServiceEntity

	if st := p.Feed().Snapshot(); st.HasValue {
		entities = append(entities, st.Value...)
	}

	if p.nodes != nil {
		if st := p.nodes.Snapshot(); st.HasValue {
			entities = append(entities, NodeEntities(st.Value.Nodes)...)
		}
	}

	return entities
}

// Graph lays out the current entities and edges.
func (p *GraphPanel) Graph() graph.Graph {
	return graph.Build(p.Entities(), p.edges.Edges(), p.layout)
}

func (p *GraphPanel) Render(opts RenderOptions, now time.Time) Frame {
	f, _ := p.frame(opts, now)

	view := graph.Highlight(p.Graph(), opts.Selected)

	f.Body = GraphBody{
		View:   view,
		Width:  p.layout.CenterX * 2,
		Height: p.layout.CenterY * 2,
	}

	return f
}

// NodeEntities presents compute nodes as graph entities.
func NodeEntities(nodes []models.NodeStatus) []models.ServiceEntity {
	out := make([]models.ServiceEntity, 0, len(nodes))

	for _, n := range nodes {
		state := models.ServiceUnknown

		switch n.State {
		case models.NodeOnline:
			state = models.ServiceUp
		case models.NodeOffline:
			state = models.ServiceDown
		case models.NodeUnknown:
		}

		out = append(out, models.ServiceEntity{
			ID:       n.ID,
			Name:     n.ID,
			Category: computeCategory,
			State:    state,
		})
	}

	return out
}
