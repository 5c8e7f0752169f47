package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer bounds queued outbound messages per connection. A full
	// buffer counts as a failed push.
	sendBuffer = 16
)

var errSendBufferFull = errors.New("send buffer full")

// clientMessage is what a websocket client sends us.
type clientMessage struct {
	Action string `json:"action"`
	SubscribeRequest
}

// serverMessage is what we push to a websocket client.
type serverMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// WSConn adapts one gorilla websocket connection to the hub's Conn. Writes
// go through a buffered channel drained by a single writer goroutine, since
// gorilla connections permit only one concurrent writer.
type WSConn struct {
	id       string
	tenantID string
	ws       *websocket.Conn
	hub      *Hub
	logger   *zap.Logger

	writeTimeout time.Duration
	send         chan serverMessage
	closed       chan struct{}
}

// NewWSConn wraps an upgraded websocket connection for the given tenant.
func NewWSConn(ws *websocket.Conn, tenantID string, hub *Hub, writeTimeout time.Duration, logger *zap.Logger) *WSConn {
	return &WSConn{
		id:           uuid.NewString(),
		tenantID:     tenantID,
		ws:           ws,
		hub:          hub,
		logger:       logger,
		writeTimeout: writeTimeout,
		send:         make(chan serverMessage, sendBuffer),
		closed:       make(chan struct{}),
	}
}

func (c *WSConn) ID() string       { return c.id }
func (c *WSConn) TenantID() string { return c.tenantID }

// Send queues one event for the writer goroutine. Non-blocking: a slow
// consumer loses the push rather than stalling the room.
func (c *WSConn) Send(event string, payload any) error {
	msg := serverMessage{Event: event, Payload: payload}
	select {
	case c.send <- msg:
		return nil
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
		return errSendBufferFull
	}
}

// Serve runs the connection until the client disconnects or the context is
// cancelled. It owns both pump goroutines and always detaches from the hub
// before returning.
func (c *WSConn) Serve(ctx context.Context) {
	defer func() {
		c.hub.Leave(c)
		close(c.closed)
		c.ws.Close()
	}()

	go c.writePump()
	c.readPump(ctx)
}

func (c *WSConn) readPump(ctx context.Context) {
	c.ws.SetReadLimit(4 << 10)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}

		switch msg.Action {
		case "subscribe":
			if err := c.hub.Subscribe(ctx, c, msg.SubscribeRequest); err != nil {
				c.sendError(err.Error())
			}
		case "unsubscribe":
			c.hub.Leave(c)
		default:
			c.sendError("unknown action")
		}
	}
}

func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.ws.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.ws.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *WSConn) sendError(message string) {
	// best effort
	_ = c.Send("error", map[string]string{"message": message})
}
