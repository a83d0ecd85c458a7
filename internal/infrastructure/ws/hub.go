package ws

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/murmur/internal/application/engine"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
)

// ConnectionMetrics counts open sockets.
type ConnectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

type HubConfig struct {
	// AllowedOrigins holds accepted Origin headers; "*" or empty accepts all.
	AllowedOrigins []string
}

// Hub owns the open connections. It reads inbound events, hands them to the
// dispatcher and fans the resulting notifications out to their recipients.
type Hub struct {
	dispatcher *Dispatcher
	logger     logging.Logger
	metrics    ConnectionMetrics
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []engine.Notification

	done     chan struct{}
	doneOnce sync.Once
}

func NewHub(dispatcher *Dispatcher, logger logging.Logger, metrics ConnectionMetrics, cfg HubConfig) *Hub {
	h := &Hub{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []engine.Notification, 256),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Run processes registrations and deliveries until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case cl := <-h.register:
			h.mu.Lock()
			h.clients[cl.ID] = cl
			h.mu.Unlock()
			h.metrics.ConnectionOpened()

		case cl := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[cl.ID]; ok {
				delete(h.clients, cl.ID)
				h.metrics.ConnectionClosed()
			}
			h.mu.Unlock()
			cl.Close()

		case notes := <-h.broadcast:
			h.deliver(notes)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info(logging.WebSocket, logging.Shutdown, "closing connections", map[logging.ExtraKey]any{
		"clients": len(h.clients),
	})
	for id, cl := range h.clients {
		cl.Close()
		delete(h.clients, id)
		h.metrics.ConnectionClosed()
	}
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.WebSocket, logging.Connection, "upgrade failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := NewClient(conn, uuid.NewString())

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	h.logger.Debug(logging.WebSocket, logging.Connection, "client connected", map[logging.ExtraKey]any{
		logging.ConnectionID: client.ID,
		logging.ClientIp:     r.RemoteAddr,
	})

	client.Send(newConnected(client.ID))

	// the request context ends with the handler, connections outlive it
	ctx := context.WithoutCancel(r.Context())
	go client.WriteMessage(h)
	go client.ReadMessage(ctx, h)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// ClientCount reports the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues notifications for delivery.
func (h *Hub) Broadcast(notes []engine.Notification) {
	if len(notes) == 0 {
		return
	}
	select {
	case h.broadcast <- notes:
	case <-h.done:
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, env Envelope) {
	ack, notes := h.dispatcher.Dispatch(ctx, c.ID, env)
	if env.RequestID != "" {
		c.Send(newAck(env.RequestID, ack))
	}
	h.Broadcast(notes)
}

func (h *Hub) disconnect(ctx context.Context, c *Client) {
	notes := h.dispatcher.Cleanup(ctx, c.ID)

	select {
	case h.unregister <- c:
	case <-h.done:
	}
	h.Broadcast(notes)

	h.logger.Debug(logging.WebSocket, logging.Connection, "client disconnected", map[logging.ExtraKey]any{
		logging.ConnectionID: c.ID,
	})
}

func (h *Hub) deliver(notes []engine.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, n := range notes {
		msg := fromNotification(n)

		if n.Scope == engine.ScopeAll {
			for _, cl := range h.clients {
				h.send(cl, msg)
			}
			continue
		}

		for _, id := range n.Recipients {
			if cl, ok := h.clients[id]; ok {
				h.send(cl, msg)
			}
		}
	}
}

func (h *Hub) send(cl *Client, msg *WSMessage) {
	if !cl.Send(msg) && !cl.IsClosed() {
		// Client is too slow – drop the message
		h.logger.Warn(logging.WebSocket, logging.Dispatch, "client buffer full, dropping message", map[logging.ExtraKey]any{
			logging.ConnectionID: cl.ID,
			logging.EventType:    msg.Type,
		})
	}
}
