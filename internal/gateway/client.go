package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/subagents/internal/logging"
)

const (
	writeWait = 10 * time.Second

	// sendBuffer is how many frames may wait for a subscriber before it is
	// considered too slow and dropped.
	sendBuffer = 64
)

// Client is a websocket subscriber to the event feed. Frames are queued by
// Send and written by a single write pump, so a stalled subscriber never
// blocks the publisher.
type Client struct {
	ConnID      string
	RemoteAddr  string
	Socket      *websocket.Conn
	ConnectedAt time.Time

	send chan Frame
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	pumping bool
}

// NewClient wraps an upgraded websocket connection.
func NewClient(conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		RemoteAddr:  remoteAddr,
		Socket:      conn,
		ConnectedAt: time.Now(),
		send:        make(chan Frame, sendBuffer),
		done:        make(chan struct{}),
	}
}

// Send queues a frame for the client without blocking. It returns
// ErrSlowClient when the queue is full.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSlowClient
	}
}

// SendEvent queues a named event with payload.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Start launches the write pump. The pump owns the socket from then on.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.pumping || c.Socket == nil {
		return
	}
	c.pumping = true
	go c.writePump()
}

// Close stops the client. Frames already queued are flushed by the write
// pump before the socket is closed. Calling it twice is harmless.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.pumping || c.Socket == nil {
		return nil
	}
	return c.Socket.Close()
}

// abort closes the client without flushing. Closing the socket unblocks a
// write the pump may be stuck in.
func (c *Client) abort() {
	c.Close()
	if c.Socket != nil {
		c.Socket.Close()
	}
}

func (c *Client) writePump() {
	defer c.Socket.Close()
	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued, then a close frame.
func (c *Client) flush() {
	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				return
			}
		default:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			c.Socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

func (c *Client) write(f Frame) error {
	c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Socket.WriteJSON(f)
}

// ClientRegistry tracks connected feed subscribers and numbers the events
// sent to them.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]*Client // connID → Client
	seq     int64
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("remote", c.RemoteAddr).Msg("subscriber connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("subscriber disconnected")
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Broadcast numbers an event and queues it for every connected client,
// returning the sequence number used. Numbering and queueing share one lock,
// so every subscriber receives events in seq order. A client whose queue is
// full is closed and dropped.
func (r *ClientRegistry) Broadcast(event string, payload any) int64 {
	f, err := NewEvent(event, payload, 0)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("encoding broadcast")
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	f.Seq = r.seq
	for id, c := range r.clients {
		err := c.Send(f)
		switch err {
		case nil:
		case ErrSlowClient:
			r.log.Warn().Str("connId", id).Msg("subscriber too slow, dropping")
			c.abort()
			delete(r.clients, id)
		default:
			r.log.Warn().Err(err).Str("connId", id).Msg("broadcast send failed")
		}
	}
	return f.Seq
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
