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
	"fmt"
	"sort"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/derived"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/normalize"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/source/n8n"
)

const (
	ActionTrigger = "trigger"

	filterAll = "all"
)

// WorkflowTrigger starts a workflow through its webhook.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, webhookPath string, payload map[string]any, idempotencyKey string) (n8n.TriggerResult, error)
}

// WorkflowRow is one catalog entry with its most recent execution.
type WorkflowRow struct {
	models.WorkflowDefinition
	Latest  *models.WorkflowExecution `json:"latest,omitempty"`
	LastRun string                    `json:"last_run,omitempty"`
	Color   string                    `json:"color"`
}

type WorkflowBody struct {
	Workflows []WorkflowRow                  `json:"workflows"`
	Recent    []models.WorkflowExecution     `json:"recent,omitempty"`
	Counts    map[models.ExecutionStatus]int `json:"counts"`
}

// WorkflowPanel shows the static catalog next to live execution history.
type WorkflowPanel struct {
	*Shell[[]models.WorkflowExecution]
	catalog []models.WorkflowDefinition
	trigger WorkflowTrigger
}

func NewWorkflowPanel(
	feed poller.Feed[[]models.WorkflowExecution],
	catalog []models.WorkflowDefinition,
	trigger WorkflowTrigger,
	staleAfter time.Duration,
) *WorkflowPanel {
	sorted := append([]models.WorkflowDefinition(nil), catalog...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}

		return sorted[i].Name < sorted[j].Name
	})

	return &WorkflowPanel{
		Shell:   NewShell("workflows", "workflow_status", "Workflows", feed, staleAfter),
		catalog: sorted,
		trigger: trigger,
	}
}

func (p *WorkflowPanel) Actions() []string {
	if p.trigger == nil {
		return nil
	}

	return []string{ActionTrigger}
}

func (p *WorkflowPanel) Execute(ctx context.Context, req ActionRequest, key string) error {
	if req.Kind != ActionTrigger || p.trigger == nil {
		return ErrUnsupportedAction
	}

	def, ok := p.definition(req.TargetID)
	if !ok {
		return fmt.Errorf("%w: workflow %q", errUnknownTarget, req.TargetID)
	}

	payload := make(map[string]any, len(req.Params)+1)
	for k, v := range req.Params {
		payload[k] = v
	}

	payload["workflow_id"] = def.ID

	_, err := p.trigger.Trigger(ctx, def.WebhookPath, payload, key)

	return err
}

func (p *WorkflowPanel) definition(id string) (models.WorkflowDefinition, bool) {
	for _, d := range p.catalog {
		if d.ID == id {
			return d, true
		}
	}

	return models.WorkflowDefinition{}, false
}

func (p *WorkflowPanel) categories() []string {
	seen := map[string]struct{}{}
	out := []string{filterAll}

	for _, d := range p.catalog {
		if _, ok := seen[d.Category]; ok || d.Category == "" {
			continue
		}

		seen[d.Category] = struct{}{}
		out = append(out, d.Category)
	}

	return out
}

func (p *WorkflowPanel) Render(opts RenderOptions, now time.Time) Frame {
	f, st := p.frame(opts, now)
	f.Actions = p.Actions()

	if f.Header != nil && !opts.Compact() {
		f.Header.Controls = []Control{{
			ID:       "category",
			Label:    "Category",
			Options:  p.categories(),
			Selected: selectedOr(opts.Filter, filterAll),
		}}
	}

	var executions []models.WorkflowExecution
	if st.HasValue {
		executions = st.Value
	}

	latest := normalize.LatestByWorkflow(executions)

	body := WorkflowBody{
		Workflows: []WorkflowRow{},
		Counts:    map[models.ExecutionStatus]int{},
	}

	for _, def := range p.catalog {
		if opts.Filter != "" && opts.Filter != filterAll && def.Category != opts.Filter {
			continue
		}

		row := WorkflowRow{WorkflowDefinition: def, Color: derived.ColorNeutral}

		if e, ok := latest[def.ID]; ok {
			row.Latest = &e
			row.LastRun = derived.RelativeTime(e.StartedAt, now)
			row.Color = executionColor(e.Status)
		}

		body.Workflows = append(body.Workflows, row)
	}

	for _, e := range executions {
		body.Counts[e.Status]++
	}

	if opts.Compact() {
		body.Workflows = limit(body.Workflows, compactListLimit)
	} else {
		body.Recent = limit(executions, fullListLimit)
	}

	f.Body = body

	return f
}

func executionColor(s models.ExecutionStatus) string {
	switch s {
	case models.ExecutionSuccess:
		return derived.ColorGood
	case models.ExecutionRunning, models.ExecutionQueued:
		return derived.ColorCool
	case models.ExecutionError:
		return derived.ColorCritical
	default:
		return derived.ColorNeutral
	}
}

func selectedOr(v, fallback string) string {
	if v == "" {
		return fallback
	}

	return v
}
