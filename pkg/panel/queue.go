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
	"strings"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/poller"
	"github.com/mfreeman451/opsdeck/pkg/source/imagegen"
)

const (
	ActionSubmit = "submit"
	ActionCancel = "cancel"

	paramPrompt = "prompt"
	paramPreset = "preset_id"
)

// QueueController submits and cancels generation jobs.
type QueueController interface {
	Submit(ctx context.Context, req imagegen.SubmitRequest, idempotencyKey string) (imagegen.SubmitResponse, error)
	Cancel(ctx context.Context, id, idempotencyKey string) error
}

type QueueBody struct {
	Current   *models.QueueItem  `json:"current,omitempty"`
	Items     []models.QueueItem `json:"items"`
	Queued    int                `json:"queued"`
	Running   int                `json:"running"`
	Completed int                `json:"completed"`
	Failed    int                `json:"failed"`
}

type QueuePanel struct {
	*Shell[[]models.QueueItem]
	control QueueController
}

func NewQueuePanel(feed poller.Feed[[]models.QueueItem], control QueueController, staleAfter time.Duration) *QueuePanel {
	return &QueuePanel{
		Shell:   NewShell("queue", "generation_queue", "Image generation", feed, staleAfter),
		control: control,
	}
}

func (p *QueuePanel) Actions() []string {
	if p.control == nil {
		return nil
	}

	return []string{ActionSubmit, ActionCancel}
}

func (p *QueuePanel) Execute(ctx context.Context, req ActionRequest, key string) error {
	if p.control == nil {
		return ErrUnsupportedAction
	}

	switch req.Kind {
	case ActionSubmit:
		prompt := strings.TrimSpace(req.Params[paramPrompt])
		if prompt == "" {
			return fmt.Errorf("%w: empty prompt", ErrInvalidAction)
		}

		_, err := p.control.Submit(ctx, imagegen.SubmitRequest{
			Prompt:   prompt,
			PresetID: req.Params[paramPreset],
		}, key)

		return err
	case ActionCancel:
		if req.TargetID == "" {
			return fmt.Errorf("%w: missing job id", ErrInvalidAction)
		}

		return p.control.Cancel(ctx, req.TargetID, key)
	default:
		return ErrUnsupportedAction
	}
}

func (p *QueuePanel) Render(opts RenderOptions, now time.Time) Frame {
	f, st := p.frame(opts, now)
	f.Actions = p.Actions()

	body := QueueBody{Items: []models.QueueItem{}}

	if st.HasValue {
		for i := range st.Value {
			item := st.Value[i]

			switch item.Status {
			case models.QueueQueued:
				body.Queued++
			case models.QueueRunning:
				body.Running++

				if body.Current == nil {
					body.Current = &item
				}
			case models.QueueCompleted:
				body.Completed++
			case models.QueueError:
				body.Failed++
			}

			// compact mode only lists work that is still pending
			if opts.Compact() && (item.Status == models.QueueCompleted || item.Status == models.QueueError) {
				continue
			}

			body.Items = append(body.Items, item)
		}
	}

	body.Items = limit(body.Items, listLimit(opts))
	f.Body = body

	return f
}
