package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the subset of *websocket.Conn the session layer uses.
// Narrowing the type lets tests drive a session with a scripted
// connection.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client wraps a WebSocket connection with a write mutex so the session
// goroutine, load broadcasts, and the ping loop can all write safely.
type Client struct {
	conn         wsConn
	remoteAddr   string
	writeTimeout time.Duration
	readTimeout  time.Duration

	mu sync.Mutex
}

func newClient(conn wsConn, remoteAddr string, writeTimeout, readTimeout time.Duration) *Client {
	return &Client{
		conn:         conn,
		remoteAddr:   remoteAddr,
		writeTimeout: writeTimeout,
		readTimeout:  readTimeout,
	}
}

// Send writes a JSON event to the client. Safe for concurrent use; this
// is the method the connection registry calls during broadcasts.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}

	return c.conn.WriteJSON(v)
}

// Ping sends a WebSocket ping control frame.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Read blocks for the next frame from the client.
func (c *Client) Read() (messageType int, data []byte, err error) {
	return c.conn.ReadMessage()
}

// refreshReadDeadline pushes the read deadline forward. Called before the
// session enters its read loop and from the pong handler, so an
// unresponsive peer eventually fails the blocking read.
func (c *Client) refreshReadDeadline() error {
	if c.readTimeout <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
}

// RemoteAddr returns the peer address for logging.
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
