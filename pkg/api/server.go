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

// Package api serves the dashboard over HTTP: rendered pages and panels,
// panel actions, the view selection and a websocket push of live pages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpx "github.com/mfreeman451/opsdeck/pkg/http"
	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/models"
	"github.com/mfreeman451/opsdeck/pkg/panel"
	"github.com/mfreeman451/opsdeck/pkg/view"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

// Option configures an APIServer.
type Option func(*APIServer)

// WithMetrics exposes per-source fetch history on /api/sources.
func WithMetrics(m SourceMetrics) Option {
	return func(s *APIServer) {
		s.metrics = m
	}
}

// WithActivity exposes the audit log on /api/activity.
func WithActivity(a ActivityReader) Option {
	return func(s *APIServer) {
		s.activity = a
	}
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *APIServer) {
		s.gatherer = g
	}
}

func WithCollectors(c *metrics.Collectors) Option {
	return func(s *APIServer) {
		s.collectors = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *APIServer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *APIServer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAPIServer builds the router. Selection changes on composer are pushed to
// live clients.
func NewAPIServer(registry *panel.Registry, composer *view.Composer, dispatcher *panel.Dispatcher, opts ...Option) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		registry:   registry,
		composer:   composer,
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.hub = NewHub(s.renderPage, s.handleClientMessage, s.collectors, s.logger.Named("ws"))
	composer.OnChange(func(view.Selection) { s.hub.Notify() })

	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.RecoveryMiddleware(s.logger))
	s.router.Use(httpx.LoggingMiddleware(s.logger))
	s.router.Use(httpx.CommonMiddleware)

	// Pages and panels
	s.router.HandleFunc("/api/pages", s.getPages).Methods("GET")
	s.router.HandleFunc("/api/pages/{name}", s.getPage).Methods("GET")
	s.router.HandleFunc("/api/panels", s.getPanels).Methods("GET")
	s.router.HandleFunc("/api/panels/{id}", s.getPanel).Methods("GET")
	s.router.HandleFunc("/api/panels/{id}/retry", s.retryPanel).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/api/panels/{id}/actions", s.dispatchAction).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/api/panels/{id}/frame", s.reportFrame).Methods("POST", "OPTIONS")

	// Interaction state
	s.router.HandleFunc("/api/selection", s.getSelection).Methods("GET")
	s.router.HandleFunc("/api/selection", s.putSelection).Methods("PUT", "OPTIONS")

	s.router.HandleFunc("/api/graph", s.getGraph).Methods("GET")
	s.router.HandleFunc("/api/sources", s.getSources).Methods("GET")
	s.router.HandleFunc("/api/activity", s.getActivity).Methods("GET")

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	s.router.Handle("/ws", s.hub).Methods("GET")
}

// ServeHTTP makes the server usable as a plain handler.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Notify pushes fresh pages to live clients.
func (s *APIServer) Notify() {
	s.hub.Notify()
}

// Start serves on addr until Stop is called.
func (s *APIServer) Start(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()

		return nil
	}

	s.server = srv
	s.cancel = cancel
	s.mu.Unlock()

	go s.hub.Run(ctx)

	s.logger.Info("Starting HTTP API", zap.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		return fmt.Errorf("http api: %w", err)
	}

	return nil
}

// Stop closes live clients and shuts the HTTP server down. A Start racing
// with Stop returns without serving.
func (s *APIServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	cancel()

	return srv.Shutdown(ctx)
}

func (s *APIServer) renderPage(name string) ([]byte, error) {
	page, err := s.composer.Page(name, s.now())
	if err != nil {
		return nil, err
	}

	return json.Marshal(page)
}

func (s *APIServer) handleClientMessage(msg clientMessage) {
	switch msg.Type {
	case msgSelect:
		s.composer.Select(msg.ID)
	case msgHover:
		s.composer.Hover(msg.ID)
	default:
		s.logger.Debug("Ignoring websocket message", zap.String("type", msg.Type))
	}
}

func (s *APIServer) getPages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.composer.Pages())
}

func (s *APIServer) getPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.composer.Page(mux.Vars(r)["name"], s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, page)
}

func (s *APIServer) getPanels(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	infos := make([]PanelInfo, 0, len(all))

	for _, p := range all {
		infos = append(infos, PanelInfo{ID: p.ID(), Kind: p.Kind(), Title: p.Title(), Actions: p.Actions()})
	}

	s.writeJSON(w, http.StatusOK, infos)
}

func renderOptions(r *http.Request) (panel.RenderOptions, error) {
	q := r.URL.Query()

	opts, err := panel.ParseRenderOptions(q.Get("mode"), q.Get("header"), q.Get("height"))
	if err != nil {
		return panel.RenderOptions{}, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}

	opts.Filter = q.Get("filter")

	return opts, nil
}

func (s *APIServer) getPanel(w http.ResponseWriter, r *http.Request) {
	opts, err := renderOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	f, err := s.composer.Panel(mux.Vars(r)["id"], opts, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, f)
}

func (s *APIServer) retryPanel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	opts, err := renderOptions(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.composer.Retry(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.Notify()

	f, err := s.composer.Panel(id, opts, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, f)
}

func (s *APIServer) dispatchAction(w http.ResponseWriter, r *http.Request) {
	var req panel.ActionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	res, err := s.composer.Dispatch(r.Context(), s.dispatcher, mux.Vars(r)["id"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.Notify()

	s.writeJSON(w, http.StatusOK, res)
}

func (s *APIServer) reportFrame(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	reporter, ok := p.(frameReporter)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s", errNoEmbedPanel, p.ID()))
		return
	}

	var report panel.FrameReport
	if err := decodeBody(r, &report); err != nil {
		s.writeError(w, err)
		return
	}

	reporter.Report(report)
	s.hub.Notify()

	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) getSelection(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.composer.Selection())
}

func (s *APIServer) putSelection(w http.ResponseWriter, r *http.Request) {
	var sel view.Selection
	if err := decodeBody(r, &sel); err != nil {
		s.writeError(w, err)
		return
	}

	s.composer.SetSelection(sel)

	s.writeJSON(w, http.StatusOK, s.composer.Selection())
}

func (s *APIServer) getGraph(w http.ResponseWriter, _ *http.Request) {
	f, err := s.composer.Panel(graphPanelID, panel.DefaultRenderOptions(panel.ModeFull), s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, f.Body)
}

func (s *APIServer) getSources(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.writeJSON(w, http.StatusOK, []SourceStatus{})
		return
	}

	withHistory := r.URL.Query().Get("history") != "false"
	names := s.metrics.Sources()
	out := make([]SourceStatus, 0, len(names))

	for _, name := range names {
		st := SourceStatus{Name: name, Last: s.metrics.LastPoint(name)}
		if withHistory {
			st.Metrics = s.metrics.GetMetrics(name)
		}

		out = append(out, st)
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *APIServer) getActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		s.writeJSON(w, http.StatusOK, []models.ActivityEvent{})
		return
	}

	q := r.URL.Query()
	window := defaultActivitySince
	limit := defaultActivityLimit

	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.writeError(w, fmt.Errorf("%w: %q", errInvalidSince, v))
			return
		}

		window = d
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, fmt.Errorf("%w: %q", errInvalidLimit, v))
			return
		}

		limit = min(n, maxActivityLimit)
	}

	events, err := s.activity.RecentActivity(r.Context(), s.now().Add(-window), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if events == nil {
		events = []models.ActivityEvent{}
	}

	s.writeJSON(w, http.StatusOK, events)
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}

	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, panel.ErrUnknownPanel), view.IsUnknownPage(err):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, panel.ErrInvalidAction),
		errors.Is(err, panel.ErrUnsupportedAction),
		errors.Is(err, errInvalidRequest),
		errors.Is(err, errInvalidSince),
		errors.Is(err, errInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, errNoEmbedPanel):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()

	if status == http.StatusInternalServerError {
		s.logger.Error("API request failed", zap.Error(err))
		msg = "Internal server error"
	}

	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Error encoding response", zap.Error(err))
	}
}
