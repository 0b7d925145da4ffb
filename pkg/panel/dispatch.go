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
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mfreeman451/opsdeck/pkg/db"
	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/source"
)

const (
	defaultActionRate  = 2
	defaultActionBurst = 4
	actionTimeout      = 10 * time.Second
	settleTimeout      = 5 * time.Second
)

// DispatcherConfig limits write actions per panel.
type DispatcherConfig struct {
	RatePerSecond float64
	Burst         int
}

// Dispatcher runs write actions: rate limit, idempotency reservation, the
// write itself, an audit event, then an immediate re-poll on success.
type Dispatcher struct {
	actions    db.ActionStore
	activity   db.ActivityStore
	collectors *metrics.Collectors
	logger     *zap.Logger
	config     DispatcherConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	newKey func() string
	now    func() time.Time
}

// NewDispatcher builds a dispatcher. collectors and logger may be nil.
func NewDispatcher(
	actions db.ActionStore,
	activity db.ActivityStore,
	collectors *metrics.Collectors,
	config DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = defaultActionRate
	}

	if config.Burst <= 0 {
		config.Burst = defaultActionBurst
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		actions:    actions,
		activity:   activity,
		collectors: collectors,
		logger:     logger.Named("dispatch"),
		config:     config,
		limiters:   make(map[string]*rate.Limiter),
		newKey:     uuid.NewString,
		now:        time.Now,
	}
}

func (d *Dispatcher) limiter(panelID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[panelID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(d.config.RatePerSecond), d.config.Burst)
		d.limiters[panelID] = l
	}

	return l
}

// Dispatch runs req against p. A backend failure is not an error: it is
// returned as a failed ActionResult and tracked on the panel, whose displayed
// data is left alone. Errors are reserved for requests that never reached the
// backend.
func (d *Dispatcher) Dispatch(ctx context.Context, p Panel, req ActionRequest) (ActionResult, error) {
	if req.Kind == "" {
		return ActionResult{}, fmt.Errorf("%w: missing kind", ErrInvalidAction)
	}

	if !slices.Contains(p.Actions(), req.Kind) {
		return ActionResult{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedAction, p.ID(), req.Kind)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = d.newKey()
	}

	res := ActionResult{
		PanelID: p.ID(),
		ActionState: ActionState{
			Key:       key,
			Kind:      req.Kind,
			TargetID:  req.TargetID,
			Status:    ActionPending,
			StartedAt: d.now(),
		},
	}

	if req.IdempotencyKey != "" {
		existing, err := d.actions.GetAction(ctx, key)

		switch {
		case err == nil:
			return duplicate(res, existing), nil
		case !errors.Is(err, db.ErrActionNotFound):
			return ActionResult{}, fmt.Errorf("lookup action: %w", err)
		}
	}

	if !d.limiter(p.ID()).Allow() {
		return ActionResult{}, ErrRateLimited
	}

	existing, reserved, err := d.actions.ReserveAction(ctx, &models.ActionRecord{
		IdempotencyKey: key,
		PanelID:        p.ID(),
		Kind:           req.Kind,
		TargetID:       req.TargetID,
		At:             res.StartedAt,
	})
	if err != nil {
		return ActionResult{}, fmt.Errorf("reserve action: %w", err)
	}

	if !reserved {
		return duplicate(res, existing), nil
	}

	p.TrackAction(res.ActionState)

	execCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	err = p.Execute(execCtx, req, key)
	cancel()

	outcome := models.OutcomeSuccess
	if err != nil {
		outcome = models.OutcomeFailure
		res.Status = ActionFailure
		res.Error = describe(err)

		d.logger.Warn("Action failed",
			zap.String("panel", p.ID()),
			zap.String("kind", req.Kind),
			zap.String("target", req.TargetID),
			zap.Error(err))
	} else {
		res.Status = ActionSuccess
	}

	// the outcome is stored even if the client went away mid-write, otherwise
	// the reservation stays pending and retries with the same key never resend
	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancelSettle()

	d.complete(settleCtx, key, outcome, res.Error)
	d.audit(settleCtx, p.ID(), req, outcome)

	if d.collectors != nil {
		d.collectors.ObserveAction(p.ID(), req.Kind, outcome)
	}

	p.TrackAction(res.ActionState)

	if err == nil {
		p.Retry(settleCtx)
	}

	return res, nil
}

func duplicate(res ActionResult, existing *models.ActionRecord) ActionResult {
	res.Duplicate = true

	if existing == nil {
		return res
	}

	res.Kind = existing.Kind
	res.TargetID = existing.TargetID
	res.StartedAt = existing.At
	res.Error = existing.Error

	switch existing.Outcome {
	case models.OutcomeSuccess:
		res.Status = ActionSuccess
	case models.OutcomeFailure:
		res.Status = ActionFailure
	default:
		res.Status = ActionPending
	}

	return res
}

func (d *Dispatcher) complete(ctx context.Context, key, outcome, errMsg string) {
	if err := d.actions.CompleteAction(ctx, key, outcome, errMsg); err != nil {
		d.logger.Error("Failed to store action outcome", zap.String("key", key), zap.Error(err))
	}
}

func (d *Dispatcher) audit(ctx context.Context, panelID string, req ActionRequest, outcome string) {
	if d.activity == nil {
		return
	}

	event := models.ActivityEvent{
		Timestamp: d.now(),
		ActorKind: models.ActorUser,
		Action:    panelID + "." + req.Kind,
		TargetID:  req.TargetID,
		Outcome:   outcome,
	}

	if err := d.activity.RecordActivity(ctx, event); err != nil {
		d.logger.Error("Failed to record activity", zap.Error(err))
	}
}

// describe turns an action error into the scoped message shown on the panel.
func describe(err error) string {
	var se *source.Error
	if errors.As(err, &se) {
		if se.StatusCode != 0 {
			return fmt.Sprintf("%s (HTTP %d)", se.Kind, se.StatusCode)
		}

		return string(se.Kind)
	}

	return err.Error()
}
