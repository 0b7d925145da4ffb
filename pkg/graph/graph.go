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
	"sort"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

const (
	FullOpacity = 1.0
	DimOpacity  = 0.25
)

// Node is a positioned entity.
type Node struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Category string              `json:"category"`
	State    models.ServiceState `json:"state"`
	Angle    float64             `json:"angle"`
	Radius   float64             `json:"radius"`
	X        float64             `json:"x"`
	Y        float64             `json:"y"`
}

// Graph is a laid out node set with the edges whose endpoints are both present.
type Graph struct {
	Nodes []Node                  `json:"nodes"`
	Edges []models.DependencyEdge `json:"edges"`
}

// Build lays out entities and filters edges. Entities are grouped by category;
// within a category they are sorted by id and fanned out symmetrically around
// the category angle. Duplicate ids keep the first entity. Edges that reference
// unknown entities, self loops and duplicates are dropped.
func Build(entities []models.ServiceEntity, edges []models.DependencyEdge, layout Layout) Graph {
	byCategory := make(map[string][]models.ServiceEntity)
	seen := make(map[string]struct{}, len(entities))

	for _, e := range entities {
		if e.ID == "" {
			continue
		}

		if _, dup := seen[e.ID]; dup {
			continue
		}

		seen[e.ID] = struct{}{}
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	categories := sortedKeys(byCategory)
	placements := layout.placements(categories)

	g := Graph{Nodes: make([]Node, 0, len(seen))}

	for _, c := range categories {
		members := byCategory[c]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

		p := placements[c]
		n := len(members)

		for i, e := range members {
			angle := p.Angle + (float64(i)-float64(n-1)/2)*layout.Spread
			x, y := layout.position(angle, p.Radius)

			g.Nodes = append(g.Nodes, Node{
				ID:       e.ID,
				Name:     e.Name,
				Category: e.Category,
				State:    e.State,
				Angle:    angle,
				Radius:   p.Radius,
				X:        x,
				Y:        y,
			})
		}
	}

	g.Edges = FilterEdges(edges, seen)

	return g
}

// FilterEdges keeps edges whose endpoints are both in known, in input order.
func FilterEdges(edges []models.DependencyEdge, known map[string]struct{}) []models.DependencyEdge {
	type pair struct{ from, to string }

	out := make([]models.DependencyEdge, 0, len(edges))
	dups := make(map[pair]struct{}, len(edges))

	for _, e := range edges {
		if e.From == e.To {
			continue
		}

		if _, ok := known[e.From]; !ok {
			continue
		}

		if _, ok := known[e.To]; !ok {
			continue
		}

		k := pair{e.From, e.To}
		if _, dup := dups[k]; dup {
			continue
		}

		dups[k] = struct{}{}
		out = append(out, e)
	}

	return out
}

// Neighbors returns the ids adjacent to id in either direction, sorted.
func Neighbors(id string, edges []models.DependencyEdge) []string {
	set := make(map[string]struct{})

	for _, e := range edges {
		switch id {
		case e.From:
			if e.To != id {
				set[e.To] = struct{}{}
			}
		case e.To:
			set[e.From] = struct{}{}
		}
	}

	return sortedKeys(set)
}

// NodeView is a node with its highlight state.
type NodeView struct {
	Node
	Highlighted bool    `json:"highlighted"`
	Selected    bool    `json:"selected"`
	Opacity     float64 `json:"opacity"`
}

// EdgeView is an edge with its highlight state.
type EdgeView struct {
	models.DependencyEdge
	Highlighted bool    `json:"highlighted"`
	Opacity     float64 `json:"opacity"`
}

// View is a graph rendered for one selection.
type View struct {
	Selected  string     `json:"selected,omitempty"`
	Neighbors []string   `json:"neighbors"`
	Nodes     []NodeView `json:"nodes"`
	Edges     []EdgeView `json:"edges"`
}

// Highlight renders g for selected. Nodes in {selected} plus its neighbours and
// the edges touching selected are at full opacity; everything else is dimmed.
// An empty or unknown selection renders everything at full opacity.
func Highlight(g Graph, selected string) View {
	v := View{
		Nodes:     make([]NodeView, len(g.Nodes)),
		Edges:     make([]EdgeView, len(g.Edges)),
		Neighbors: []string{},
	}

	present := false

	for _, n := range g.Nodes {
		if n.ID == selected {
			present = true
			break
		}
	}

	if !present {
		for i, n := range g.Nodes {
			v.Nodes[i] = NodeView{Node: n, Opacity: FullOpacity}
		}

		for i, e := range g.Edges {
			v.Edges[i] = EdgeView{DependencyEdge: e, Opacity: FullOpacity}
		}

		return v
	}

	v.Selected = selected
	v.Neighbors = Neighbors(selected, g.Edges)

	lit := map[string]struct{}{selected: {}}
	for _, id := range v.Neighbors {
		lit[id] = struct{}{}
	}

	for i, n := range g.Nodes {
		_, on := lit[n.ID]
		v.Nodes[i] = NodeView{Node: n, Highlighted: on, Selected: n.ID == selected, Opacity: opacity(on)}
	}

	for i, e := range g.Edges {
		on := e.From == selected || e.To == selected
		v.Edges[i] = EdgeView{DependencyEdge: e, Highlighted: on, Opacity: opacity(on)}
	}

	return v
}

func opacity(on bool) float64 {
	if on {
		return FullOpacity
	}

	return DimOpacity
}
