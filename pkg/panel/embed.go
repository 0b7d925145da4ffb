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
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/derived"
)

var (
	errNoDashboard  = errors.New("dashboard id is required")
	errNoEmbedBase  = errors.New("dashboard base url is required")
	errInvalidTheme = errors.New("theme must be light or dark")
)

const ActionReload = "reload"

// timeRanges offered by the embed header.
var timeRanges = []string{"now-1h", "now-6h", "now-24h", "now-7d"}

// EmbedConfig holds the recognised parameters of the embedded dashboard.
type EmbedConfig struct {
	BaseURL     string            `json:"base_url"`
	DashboardID string            `json:"dashboard_id"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Theme       string            `json:"theme"`
	Kiosk       bool              `json:"kiosk"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// BuildEmbedURL builds the frame URL. The dashboard response is never read.
// Variables are passed as var-<name>, in name order.
func BuildEmbedURL(cfg EmbedConfig) (string, error) {
	if cfg.DashboardID == "" {
		return "", errNoDashboard
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: %q", errNoEmbedBase, cfg.BaseURL)
	}

	switch cfg.Theme {
	case "", "light", "dark":
	default:
		return "", fmt.Errorf("%w: %q", errInvalidTheme, cfg.Theme)
	}

	base.Path += "/d/" + cfg.DashboardID

	q := url.Values{}

	if cfg.From != "" {
		q.Set("from", cfg.From)
	}

	if cfg.To != "" {
		q.Set("to", cfg.To)
	}

	if cfg.Theme != "" {
		q.Set("theme", cfg.Theme)
	}

	names := make([]string, 0, len(cfg.Variables))
	for name := range cfg.Variables {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		q.Set("var-"+name, cfg.Variables[name])
	}

	encoded := q.Encode()

	if cfg.Kiosk {
		if encoded != "" {
			encoded += "&"
		}

		encoded += "kiosk"
	}

	base.RawQuery = encoded

	return base.String(), nil
}

type EmbedBody struct {
	URL         string `json:"url,omitempty"`
	DashboardID string `json:"dashboard_id"`
	Reload      int    `json:"reload"` // bumped on retry so the client reloads the frame
}

// FrameReport is the load or error signal of the embedded frame.
type FrameReport struct {
	Loaded  bool   `json:"loaded"`
	Message string `json:"message,omitempty"`
}

// EmbedPanel wraps the external dashboard frame. Its state comes only from
// frame load and error reports.
type EmbedPanel struct {
	id     string
	title  string
	config EmbedConfig

	mu       sync.RWMutex
	status   Status
	message  string
	reportAt time.Time
	reload   int
	action   *ActionState
	now      func() time.Time
}

func NewEmbedPanel(id, title string, cfg EmbedConfig) *EmbedPanel {
	return &EmbedPanel{
		id:     id,
		title:  title,
		config: cfg,
		status: StatusLoading,
		now:    time.Now,
	}
}

func (p *EmbedPanel) ID() string {
	return p.id
}

func (*EmbedPanel) Kind() string {
	return "dashboard_embed"
}

func (p *EmbedPanel) Title() string {
	return p.title
}

// Report records the frame's load or error signal.
func (p *EmbedPanel) Report(r FrameReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reportAt = p.now()

	if r.Loaded {
		p.status = StatusReady
		p.message = ""

		return
	}

	p.status = StatusError
	p.message = r.Message

	if p.message == "" {
		p.message = "frame failed to load"
	}
}

// Retry re-enters loading and asks the client to reload the frame.
func (p *EmbedPanel) Retry(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusLoading
	p.message = ""
	p.reload++
}

func (*EmbedPanel) Actions() []string {
	return []string{ActionReload}
}

// Execute accepts reload; the dispatcher's follow-up Retry does the work.
func (*EmbedPanel) Execute(_ context.Context, req ActionRequest, _ string) error {
	if req.Kind != ActionReload {
		return ErrUnsupportedAction
	}

	return nil
}

func (p *EmbedPanel) TrackAction(state ActionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.action = &state
}

func (p *EmbedPanel) Render(opts RenderOptions, now time.Time) Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cfg := p.config
	if opts.Filter != "" {
		cfg.From = opts.Filter
	}

	// compact embeds always hide dashboard chrome
	if opts.Compact() {
		cfg.Kiosk = true
	}

	f := Frame{
		ID:      p.id,
		Kind:    p.Kind(),
		Mode:    opts.Mode,
		Height:  opts.Height,
		Status:  p.status,
		Actions: p.Actions(),
	}

	if p.action != nil {
		a := *p.action
		f.Action = &a
	}

	if opts.Header {
		f.Header = &Header{Title: p.title}

		if !opts.Compact() {
			f.Header.Controls = []Control{{
				ID:       "range",
				Label:    "Range",
				Options:  timeRanges,
				Selected: selectedOr(cfg.From, timeRanges[1]),
			}}
		}
	}

	body := EmbedBody{DashboardID: cfg.DashboardID, Reload: p.reload}

	u, err := BuildEmbedURL(cfg)
	if err != nil {
		f.Status = StatusError
		f.Error = &ErrorInfo{Kind: "config", Message: err.Error()}
	} else {
		body.URL = u
	}

	if f.Error == nil && p.status == StatusError {
		f.Error = &ErrorInfo{Kind: "frame", Message: p.message, Retry: true}
	}

	if !p.reportAt.IsZero() {
		at := p.reportAt
		f.UpdatedAt = &at
		f.Updated = derived.RelativeTime(at, now)
	}

	if !opts.Compact() {
		f.Footer = "waiting for frame"
		if f.UpdatedAt != nil {
			f.Footer = "reported " + f.Updated
		}
	}

	f.Body = body

	return f
}
