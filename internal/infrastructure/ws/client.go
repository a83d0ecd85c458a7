package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 32768 // 32KB
	sendBufferSize = 64
)

type Client struct {
	conn    *connWrapper
	Message chan *WSMessage
	ID      string `json:"id"`

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn *websocket.Conn, id string) *Client {
	return &Client{
		conn:    newConnWrapper(conn),
		Message: make(chan *WSMessage, sendBufferSize),
		ID:      id,
		closed:  make(chan struct{}),
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Send queues msg without blocking. A client whose buffer is full is too slow
// and loses the message.
func (c *Client) Send(msg *WSMessage) bool {
	if c.IsClosed() {
		return false
	}
	select {
	case c.Message <- msg:
		return true
	default:
		return false
	}
}

// ReadMessage handles inbound events until the connection drops, then tears
// the connection down through the hub.
func (c *Client) ReadMessage(ctx context.Context, hub *Hub) {
	defer func() {
		hub.disconnect(ctx, c)
		c.Close()
	}()

	c.conn.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				hub.logger.Warn(logging.WebSocket, logging.Connection, "read error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		if len(raw) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Send(newAck("", AckPayload{Success: false, Error: "malformed event", Code: domain.CodeValidation}))
			continue
		}

		hub.handle(ctx, c, env)
	}
}

func (c *Client) WriteMessage(hub *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.Message:
			if err := c.conn.WriteJSON(msg, time.Now().Add(writeWait)); err != nil {
				hub.logger.Warn(logging.WebSocket, logging.Connection, "write error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}
