package sockets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

var errClosed = errors.New("closed hub")

// Connection is one subscriber of a Hub.
type Connection interface {
	Send(msg Msg) error
	io.Closer
}

// Msg is the message structure.
type Msg struct {
	Body []byte
}

// Hub upgrades http requests to websockets and broadcasts entity state
// changes to every connected client.
type Hub struct {
	upgrader         websocket.Upgrader
	pingIntervalSecs int
	pingMsg          []byte
	onError          func(err error)
	onMessage        func([]byte, Connection)
	onConnected      func(Connection)

	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	closed bool
}

func New(opts ...func(*Hub)) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: map[*Conn]struct{}{},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Conn is a single upgraded websocket.
type Conn struct {
	hub    *Hub
	ws     *websocket.Conn
	send   chan Msg
	once   sync.Once
	closed chan struct{}
}

func (c *Conn) Send(msg Msg) error {
	select {
	case <-c.closed:
		return errors.New("closed connection")
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		// slow consumer
		c.close()
		return errors.New("send buffer full")
	}
}

// Closes the connection.
func (c *Conn) Close() error {
	c.close()
	return nil
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.closed)
		c.ws.Close()
		c.hub.remove(c)
	})
}

// ServeHTTP upgrades r and keeps the connection until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.error(err)
		return
	}

	c := &Conn{hub: h, ws: ws, send: make(chan Msg, sendBufferSize), closed: make(chan struct{})}
	if !h.add(c) {
		ws.Close()
		return
	}
	if h.onConnected != nil {
		go h.onConnected(c)
	}
	go c.writePump()
	c.readPump()
}

// Broadcast sends body to every connection.
func (h *Hub) Broadcast(body []byte) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(Msg{Body: body}); err != nil {
			h.error(err)
		}
	}
}

// Write broadcasts entity states as one JSON array.
func (h *Hub) Write(_ context.Context, states []model.EntityState) error {
	if h.isClosed() {
		return errClosed
	}
	body, err := json.Marshal(states)
	if err != nil {
		return err
	}
	h.Broadcast(body)
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	return nil
}

func (h *Hub) add(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Hub) error(err error) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (c *Conn) readPump() {
	defer c.close()
	// drop the read timeout inherited from the http server
	_ = c.ws.SetReadDeadline(time.Time{})
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.error(err)
			}
			return
		}
		if c.hub.onMessage != nil {
			go c.hub.onMessage(msg, c)
		}
	}
}

func (c *Conn) writePump() {
	var ping <-chan time.Time
	if c.hub.pingIntervalSecs > 0 && len(c.hub.pingMsg) > 0 {
		ticker := time.NewTicker(time.Second * time.Duration(c.hub.pingIntervalSecs))
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(msg.Body); err != nil {
				c.hub.error(err)
				c.close()
				return
			}
		case <-ping:
			if err := c.write(c.hub.pingMsg); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Conn) write(body []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, body)
}
