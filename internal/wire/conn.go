package wire

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout     = 10 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	maxFrameSize            = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Conn frames wire messages over a websocket. It is the sole writer on the
// underlying connection: Send serializes writers through a mutex and bounds
// every write with a deadline, so a frame is either delivered whole within
// the timeout or the write fails. A peer never observes a partial message
// and a stalled peer cannot block other senders indefinitely.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// NewConn wraps an established websocket. A non-positive writeTimeout falls
// back to the default.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// Dial connects to a wire endpoint (ws://host:port/).
func Dial(url string, handshakeTimeout, writeTimeout time.Duration) (*Conn, error) {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewConn(ws, writeTimeout), nil
}

// Upgrade accepts an inbound wire connection on an HTTP handler.
func Upgrade(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrading connection: %w", err)
	}
	return NewConn(ws, writeTimeout), nil
}

// Send writes one message as one frame, atomically with respect to other
// senders on this connection.
func (c *Conn) Send(m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing %s message: %w", m.kind(), err)
	}
	return nil
}

// Receive blocks for the next inbound frame and decodes it. A malformed or
// unknown frame is returned as a decode error; the caller decides whether
// that is fatal to the connection.
func (c *Conn) Receive() (Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return Decode(data)
}

// RemoteAddr reports the peer's network address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Close tears the connection down.
func (c *Conn) Close() error {
	return c.ws.Close()
}
