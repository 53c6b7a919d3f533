package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HubConfig configures websocket connections
type HubConfig struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

// DefaultHubConfig returns default websocket settings
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		MaxMessageSize: 4 * 1024,
		SendBufferSize: 64,
	}
}

// Message is the frame written to clients
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// client is one open websocket. A user may hold several.
type client struct {
	id     uuid.UUID
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub keeps the websocket connections of this process, grouped by user,
// and delivers pushed events to them. Emitting to a user with no open
// connection is not an error.
type Hub struct {
	logger *zap.Logger
	config HubConfig

	mu      sync.RWMutex
	clients map[uuid.UUID]map[uuid.UUID]*client
}

func NewHub(logger *zap.Logger, config HubConfig) *Hub {
	return &Hub{
		logger:  logger.Named("ws_hub"),
		config:  config,
		clients: make(map[uuid.UUID]map[uuid.UUID]*client),
	}
}

// Emit queues event for every connection userID has open. A connection
// whose buffer is full is dropped rather than stalling the caller.
func (h *Hub) Emit(ctx context.Context, event string, payload any, userID uuid.UUID) error {
	data, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client",
			zap.String("user_id", userID.String()),
			zap.String("connection_id", c.id.String()))
		h.remove(c)
	}
	return nil
}

// Register takes ownership of conn and serves it until either side closes.
func (h *Hub) Register(userID uuid.UUID, conn *websocket.Conn) {
	c := &client{
		id:     uuid.New(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, h.config.SendBufferSize),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[uuid.UUID]*client)
	}
	h.clients[userID][c.id] = c
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)

	h.logger.Debug("websocket connection added",
		zap.String("connection_id", c.id.String()),
		zap.String("user_id", userID.String()))
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for _, c := range conns {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}

// remove unregisters c; the closed send channel stops its write pump.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c.id]; !ok {
		return
	}
	close(c.send)
	delete(conns, c.id)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		h.remove(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("websocket write error",
					zap.Error(err),
					zap.String("connection_id", c.id.String()))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; clients have nothing to say on
// this channel.
func (h *Hub) readPump(c *client) {
	defer func() {
		c.conn.Close()
		h.remove(c)
	}()

	c.conn.SetReadLimit(h.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error",
					zap.Error(err),
					zap.String("connection_id", c.id.String()))
			}
			return
		}
	}
}
