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

// Package view composes panels into pages. A Composer owns the interaction
// state (selected and hovered entity, active scene) and passes it down to the
// panels on every render.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mfreeman451/opsdeck/pkg/panel"
)

const OverviewPage = "overview"

var errUnknownPage = errors.New("unknown page")

// Selection is the interaction state of one view.
type Selection struct {
	Selected    string `json:"selected,omitempty"`
	Hovered     string `json:"hovered,omitempty"`
	ActiveScene string `json:"active_scene,omitempty"`
}

// Focus is the entity to highlight: a hover previews over the selection.
func (s Selection) Focus() string {
	if s.Hovered != "" {
		return s.Hovered
	}

	return s.Selected
}

// Slot places one panel on a page.
type Slot struct {
	PanelID string     `json:"panel_id" yaml:"panel_id"`
	Mode    panel.Mode `json:"mode" yaml:"mode"`
	Header  *bool      `json:"header,omitempty" yaml:"header,omitempty"`
	Height  int        `json:"height,omitempty" yaml:"height,omitempty"`
}

func (s Slot) options() panel.RenderOptions {
	opts := panel.DefaultRenderOptions(s.Mode)

	if s.Header != nil {
		opts.Header = *s.Header
	}

	if s.Height > 0 {
		opts.Height = s.Height
	}

	return opts
}

// PageSpec is the layout of a page.
type PageSpec struct {
	Name  string `json:"name" yaml:"name"`
	Title string `json:"title" yaml:"title"`
	Slots []Slot `json:"slots" yaml:"slots"`
}

// Page is a rendered page.
type Page struct {
	Name        string        `json:"name"`
	Title       string        `json:"title"`
	Selection   Selection     `json:"selection"`
	Tiles       []Tile        `json:"tiles,omitempty"`
	Panels      []panel.Frame `json:"panels"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Composer renders pages from a panel registry.
type Composer struct {
	registry *panel.Registry
	pages    []PageSpec

	mu        sync.RWMutex
	selection Selection
	listeners []func(Selection)
}

// NewComposer uses pages as given, or DefaultPages when none are passed.
func NewComposer(registry *panel.Registry, pages ...PageSpec) *Composer {
	if len(pages) == 0 {
		pages = DefaultPages(registry)
	}

	return &Composer{registry: registry, pages: pages}
}

// DefaultPages is an overview of every panel in compact mode plus one full
// page per panel.
func DefaultPages(registry *panel.Registry) []PageSpec {
	overview := PageSpec{Name: OverviewPage, Title: "Overview"}
	pages := []PageSpec{}

	for _, p := range registry.All() {
		overview.Slots = append(overview.Slots, Slot{PanelID: p.ID(), Mode: panel.ModeCompact})
		pages = append(pages, PageSpec{
			Name:  p.ID(),
			Title: p.Title(),
			Slots: []Slot{{PanelID: p.ID(), Mode: panel.ModeFull}},
		})
	}

	return append([]PageSpec{overview}, pages...)
}

// Pages lists page names in order.
func (c *Composer) Pages() []string {
	names := make([]string, 0, len(c.pages))
	for _, p := range c.pages {
		names = append(names, p.Name)
	}

	return names
}

func (c *Composer) Selection() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.selection
}

// SetSelection replaces the interaction state and notifies listeners when it
// changed.
func (c *Composer) SetSelection(s Selection) {
	c.update(func(cur *Selection) { *cur = s })
}

func (c *Composer) Select(id string) {
	c.update(func(cur *Selection) { cur.Selected = id })
}

func (c *Composer) Hover(id string) {
	c.update(func(cur *Selection) { cur.Hovered = id })
}

func (c *Composer) SetScene(id string) {
	c.update(func(cur *Selection) { cur.ActiveScene = id })
}

// OnChange registers fn for selection changes.
func (c *Composer) OnChange(fn func(Selection)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, fn)
}

func (c *Composer) update(fn func(*Selection)) {
	c.mu.Lock()

	before := c.selection
	fn(&c.selection)
	after := c.selection
	listeners := make([]func(Selection), len(c.listeners))
	copy(listeners, c.listeners)

	c.mu.Unlock()

	if before == after {
		return
	}

	for _, l := range listeners {
		l(after)
	}
}

func (c *Composer) withSelection(opts panel.RenderOptions) panel.RenderOptions {
	s := c.Selection()
	opts.Selected = s.Focus()
	opts.Scene = s.ActiveScene

	return opts
}

// Panel renders one panel with the view's selection applied.
func (c *Composer) Panel(id string, opts panel.RenderOptions, now time.Time) (panel.Frame, error) {
	p, err := c.registry.Get(id)
	if err != nil {
		return panel.Frame{}, err
	}

	return p.Render(c.withSelection(opts), now), nil
}

// Page renders a page by name.
func (c *Composer) Page(name string, now time.Time) (Page, error) {
	for _, spec := range c.pages {
		if spec.Name != name {
			continue
		}

		page := Page{
			Name:        spec.Name,
			Title:       spec.Title,
			Selection:   c.Selection(),
			Panels:      make([]panel.Frame, 0, len(spec.Slots)),
			GeneratedAt: now,
		}

		for _, slot := range spec.Slots {
			f, err := c.Panel(slot.PanelID, slot.options(), now)
			if err != nil {
				return Page{}, fmt.Errorf("page %s: %w", name, err)
			}

			page.Panels = append(page.Panels, f)
		}

		page.Tiles = Tiles(page.Panels)

		return page, nil
	}

	return Page{}, fmt.Errorf("%w: %s", errUnknownPage, name)
}

// Dispatch runs an action on a panel. A successful scene activation becomes
// the view's active scene.
func (c *Composer) Dispatch(ctx context.Context, d *panel.Dispatcher, id string, req panel.ActionRequest) (panel.ActionResult, error) {
	p, err := c.registry.Get(id)
	if err != nil {
		return panel.ActionResult{}, err
	}

	res, err := d.Dispatch(ctx, p, req)
	if err != nil {
		return res, err
	}

	if res.Kind == panel.ActionScene && res.Status == panel.ActionSuccess {
		c.SetScene(res.TargetID)
	}

	return res, nil
}

// Retry re-fetches one panel.
func (c *Composer) Retry(ctx context.Context, id string) error {
	p, err := c.registry.Get(id)
	if err != nil {
		return err
	}

	p.Retry(ctx)

	return nil
}

// IsUnknownPage reports whether err came from an unknown page name.
func IsUnknownPage(err error) bool {
	return errors.Is(err, errUnknownPage)
}
