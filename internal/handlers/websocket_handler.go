package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stagesync/internal/config"
	"stagesync/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Implement proper origin checking in production
	},
}

// WebSocketHandler upgrades HTTP connections and hands them to the core
type WebSocketHandler struct {
	service *services.WebSocketService
	socket  config.SocketConfig
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(service *services.WebSocketService, socket config.SocketConfig) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
		socket:  socket,
	}
}

// ServeWS upgrades the HTTP connection and starts the client pumps
// GET /ws
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, h.socket.SendBuffer),
		service: h.service,
		socket:  h.socket,
	}

	h.service.Register(client)

	go client.writePump()
	go client.readPump()
}

// Client wraps one WebSocket connection. The connection identity is unique
// per live connection: a reconnect yields a new Client with a new id.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	service *services.WebSocketService
	socket  config.SocketConfig

	mu     sync.Mutex
	closed bool
}

// ID returns the connection identity
func (c *Client) ID() string {
	return c.id
}

// Send queues a message without blocking; false means the buffer is full
// or the connection is already closed
func (c *Client) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Close shuts the connection down. Closing the send channel makes writePump
// emit a close frame and close the socket, which in turn unblocks readPump
// so the disconnect flows through the core's normal leave path.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump reads inbound events and forwards them to the core in order
func (c *Client) readPump() {
	defer func() {
		c.service.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.socket.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.socket.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.socket.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Read error on %s: %v", c.id, err)
			}
			break
		}
		c.service.Dispatch(c, message)
	}
}

// writePump writes queued messages and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.socket.PingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.socket.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.socket.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
