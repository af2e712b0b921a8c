package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	controlTimeout = time.Second
	maxMessageSize = 64 * 1024
)

// Conn adapts a gorilla connection to the hub's transport interface. Data
// frames are written by the hub's writer only; control frames may be written
// from any goroutine.
type Conn struct {
	id        string
	ws        *websocket.Conn
	pongWait  time.Duration
	closeOnce sync.Once
	closeErr  error
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{id: uuid.NewString(), ws: ws}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}

func (c *Conn) WriteMessage(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) WritePing() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlTimeout))
}

// Close sends a close frame carrying code and reason, then tears down the
// socket. Only the first call has any effect.
func (c *Conn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlTimeout))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// EnableKeepalive bounds inbound frame size and expects a pong or a data
// frame at least every pongWait.
func (c *Conn) EnableKeepalive(pongWait time.Duration) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.pongWait = pongWait
}

// ReadMessage blocks for the next inbound data frame.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.pongWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	}
	return data, nil
}
