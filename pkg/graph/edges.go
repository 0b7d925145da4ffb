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
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mfreeman451/opsdeck/pkg/models"
)

type edgesFile struct {
	Edges []models.DependencyEdge `yaml:"edges"`
}

// ParseEdges reads an edge list document of the form
//
//	edges:
//	  - {from: n8n, to: postgres, kind: hard}
//
// A missing kind means hard.
func ParseEdges(data []byte) ([]models.DependencyEdge, error) {
	var doc edgesFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return []models.DependencyEdge{}, nil
		}

		return nil, fmt.Errorf("parse edges: %w", err)
	}

	return NormalizeEdges(doc.Edges)
}

// NormalizeEdges trims ids, defaults the kind and rejects invalid entries.
func NormalizeEdges(edges []models.DependencyEdge) ([]models.DependencyEdge, error) {
	out := make([]models.DependencyEdge, 0, len(edges))

	for i, e := range edges {
		e.From = strings.TrimSpace(e.From)
		e.To = strings.TrimSpace(e.To)

		if e.From == "" || e.To == "" {
			return nil, fmt.Errorf("edge %d: %w", i, errEmptyEndpoint)
		}

		switch e.Kind {
		case "":
			e.Kind = models.EdgeHard
		case models.EdgeHard, models.EdgeSoft:
		default:
			return nil, fmt.Errorf("edge %d (%s -> %s): %w: %q", i, e.From, e.To, errInvalidEdgeKind, e.Kind)
		}

		out = append(out, e)
	}

	return out, nil
}

// LoadEdges reads and parses an edge list file.
func LoadEdges(path string) ([]models.DependencyEdge, error) {
	if path == "" {
		return nil, errNoEdgesFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edges: %w", err)
	}

	return ParseEdges(data)
}
