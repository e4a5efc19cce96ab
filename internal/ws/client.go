// Package ws carries the quiz wire protocol over websocket
// connections: one Client per open socket, plus the Dispatcher that
// routes decoded commands into the session store.
package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quizroom/internal/domain"
	"github.com/quizroom/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client represents one live websocket connection. The bound identity
// (room, name, role) is set by the dispatcher on join and used to
// synthesize a leave when the transport closes.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger

	mu       sync.Mutex
	roomCode string
	name     string
	role     domain.Role
	bound    bool
}

// NewClient wraps an upgraded websocket connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// bind attaches a room identity to the connection.
func (c *Client) bind(roomCode, name string, role domain.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
	c.name = name
	c.role = role
	c.bound = true
}

// identity returns the bound identity, if any.
func (c *Client) identity() (roomCode, name string, role domain.Role, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode, c.name, c.role, c.bound
}

// Send queues a message for delivery. It never blocks: a slow client
// whose buffer is full simply misses the message.
func (c *Client) Send(msg protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		c.logger.Error("failed to encode message", "type", msg.Type, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client buffer full, skipping", "client_id", c.id, "type", msg.Type)
	}
}

// Close tears down the transport. Safe to call multiple times and
// after the peer has already disconnected.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump pumps messages from the websocket connection into the
// dispatcher. It exits when the transport closes, synthesizing a leave
// for the bound identity.
func (c *Client) readPump(d *Dispatcher) {
	defer func() {
		d.connectionClosed(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "client_id", c.id, "error", err)
			}
			return
		}
		d.Handle(c, message)
	}
}

// writePump pumps queued messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades an HTTP request and starts the client pumps.
func ServeWS(d *Dispatcher, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, logger)
	go client.writePump()
	go client.readPump(d)

	logger.Debug("new websocket connection", "client_id", client.id)
}
