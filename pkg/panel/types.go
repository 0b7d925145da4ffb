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

// Package panel implements the embedded panel shell: every panel renders in a
// compact or full mode, moves through loading, ready and error, and dispatches
// write actions through a shared Dispatcher.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownPanel      = errors.New("unknown panel")
	ErrUnsupportedAction = errors.New("action not supported by panel")
	ErrInvalidAction     = errors.New("invalid action request")
	ErrRateLimited       = errors.New("action rate limit exceeded")
	errInvalidMode       = errors.New("invalid render mode")
	errInvalidHeight     = errors.New("invalid height")
	errUnknownTarget     = errors.New("unknown action target")
)

// Mode selects the render contract.
type Mode string

const (
	ModeCompact Mode = "compact"
	ModeFull    Mode = "full"
)

const (
	defaultCompactHeight = 200
	compactListLimit     = 5
	fullListLimit        = 50
)

// Status is the panel state machine: loading, then ready or error. Retry from
// error re-enters loading.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// RenderOptions are the shell parameters every panel accepts.
type RenderOptions struct {
	Mode     Mode   `json:"mode"`
	Header   bool   `json:"header"`
	Height   int    `json:"height,omitempty"`   // pixels; 0 lets the body size itself
	Filter   string `json:"filter,omitempty"`   // selector control value
	Selected string `json:"selected,omitempty"` // graph node
	Scene    string `json:"scene,omitempty"`    // active scene
}

// Compact reports whether the compact contract applies.
func (o RenderOptions) Compact() bool {
	return o.Mode == ModeCompact
}

// DefaultRenderOptions are the defaults for mode.
func DefaultRenderOptions(mode Mode) RenderOptions {
	if mode == ModeCompact {
		return RenderOptions{Mode: ModeCompact, Header: false, Height: defaultCompactHeight}
	}

	return RenderOptions{Mode: ModeFull, Header: true}
}

// ParseRenderOptions reads the query string form of RenderOptions. Empty
// values keep the defaults for the mode.
func ParseRenderOptions(mode, header, height string) (RenderOptions, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(mode)))
	if m == "" {
		m = ModeFull
	}

	if m != ModeCompact && m != ModeFull {
		return RenderOptions{}, fmt.Errorf("%w: %q", errInvalidMode, mode)
	}

	opts := DefaultRenderOptions(m)

	if header != "" {
		v, err := strconv.ParseBool(header)
		if err != nil {
			return RenderOptions{}, fmt.Errorf("header: %w", err)
		}

		opts.Header = v
	}

	if height != "" {
		h, err := strconv.Atoi(height)
		if err != nil || h < 0 {
			return RenderOptions{}, fmt.Errorf("%w: %q", errInvalidHeight, height)
		}

		opts.Height = h
	}

	return opts, nil
}

// Header is the panel title bar with its selector controls.
type Header struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	Controls []Control `json:"controls,omitempty"`
}

// Control is one selector in a panel header.
type Control struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Options  []string `json:"options,omitempty"`
	Selected string   `json:"selected,omitempty"`
}

// ErrorInfo is a scoped error shown inside one panel.
type ErrorInfo struct {
	Source  string `json:"source,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// ActionStatus is the state of the last write action of a panel.
type ActionStatus string

const (
	ActionPending ActionStatus = "pending"
	ActionSuccess ActionStatus = "success"
	ActionFailure ActionStatus = "failure"
)

// ActionState is the last action a panel dispatched.
type ActionState struct {
	Key       string       `json:"idempotency_key"`
	Kind      string       `json:"kind"`
	TargetID  string       `json:"target_id,omitempty"`
	Status    ActionStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// Frame is one rendered panel.
type Frame struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	Mode      Mode         `json:"mode"`
	Height    int          `json:"height,omitempty"`
	Header    *Header      `json:"header,omitempty"`
	Status    Status       `json:"status"`
	Error     *ErrorInfo   `json:"error,omitempty"`
	Stale     bool         `json:"stale"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
	Updated   string       `json:"updated,omitempty"`
	Action    *ActionState `json:"action,omitempty"`
	Actions   []string     `json:"actions,omitempty"`
	Body      any          `json:"body,omitempty"`
	Footer    string       `json:"footer,omitempty"`
}

// ActionRequest asks a panel to perform one write.
type ActionRequest struct {
	Kind           string            `json:"kind"`
	TargetID       string            `json:"target_id"`
	Params         map[string]string `json:"params,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// ActionResult is the outcome of Dispatch.
type ActionResult struct {
	ActionState
	PanelID   string `json:"panel_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Panel is the shell contract.
type Panel interface {
	ID() string
	Kind() string
	Title() string
	Render(opts RenderOptions, now time.Time) Frame
	// Retry re-fetches the panel's sources now.
	Retry(ctx context.Context)
	// Actions lists the action kinds Execute accepts.
	Actions() []string
	// Execute performs one write against the backend.
	Execute(ctx context.Context, req ActionRequest, idempotencyKey string) error
	TrackAction(state ActionState)
}
