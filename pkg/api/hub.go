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

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mfreeman451/opsdeck/pkg/metrics"
	"github.com/mfreeman451/opsdeck/pkg/view"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 4
)

// Message types a live client may send.
const (
	msgSelect = "select"
	msgHover  = "hover"
	msgPage   = "page"
)

// clientMessage is an interaction event from a live client.
type clientMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Page string `json:"page,omitempty"`
}

// RenderFunc renders a page to the bytes pushed to clients.
type RenderFunc func(page string) ([]byte, error)

type wsClient struct {
	conn *websocket.Conn
	page string
	send chan []byte
}

// Hub pushes rendered pages to websocket clients. Notifications are
// coalesced: a burst of feed updates produces one push per client.
type Hub struct {
	upgrader   websocket.Upgrader
	render     RenderFunc
	onMessage  func(clientMessage)
	collectors *metrics.Collectors
	logger     *zap.Logger

	notify  chan struct{}
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub. onMessage and collectors may be nil.
func NewHub(render RenderFunc, onMessage func(clientMessage), collectors *metrics.Collectors, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		render:     render,
		onMessage:  onMessage,
		collectors: collectors,
		logger:     logger,
		notify:     make(chan struct{}, 1),
		clients:    make(map[*wsClient]struct{}),
	}
}

// Notify schedules a push to every client.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Run pushes pages on every notification until ctx is done, then closes all
// clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.notify:
			h.broadcast()
		}
	}
}

// ServeHTTP upgrades the request and streams the page named by the "page"
// query parameter, the overview by default.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	if page == "" {
		page = view.OverviewPage
	}

	first, err := h.render(page)
	if err != nil {
		if view.IsUnknownPage(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, page: page, send: make(chan []byte, sendBuffer)}
	c.send <- first

	h.register(c)

	go h.writePump(c)

	h.readPump(c)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if h.collectors != nil {
		h.collectors.AddWebsocketClients(1)
	}

	h.logger.Debug("Websocket client connected", zap.String("page", c.page))
}

// unregister must be called with h.mu held. It is a no-op for clients that
// are already gone.
func (h *Hub) unregister(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)

	if h.collectors != nil {
		h.collectors.AddWebsocketClients(-1)
	}
}

func (h *Hub) broadcast() {
	h.mu.Lock()

	pages := make(map[string][]byte)
	for c := range h.clients {
		pages[c.page] = nil
	}

	h.mu.Unlock()

	for page := range pages {
		msg, err := h.render(page)
		if err != nil {
			h.logger.Warn("Failed to render page for push", zap.String("page", page), zap.Error(err))
			delete(pages, page)

			continue
		}

		pages[page] = msg
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		msg, ok := pages[c.page]
		if !ok || msg == nil {
			continue
		}

		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping slow websocket client", zap.String("page", c.page))
			h.unregister(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.unregister(c)
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.mu.Lock()
		h.unregister(c)
		h.mu.Unlock()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket client read failed", zap.Error(err))
			}

			return
		}

		if msg.Type == msgPage && msg.Page != "" {
			h.mu.Lock()
			c.page = msg.Page
			h.mu.Unlock()
			h.Notify()

			continue
		}

		if h.onMessage != nil {
			h.onMessage(msg)
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
