package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/internal/state"
)

// Maximum message size allowed from a viewer. Viewers only send control frames.
const maxViewerMessageSize = 1024

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the configured control API origin
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SnapshotSource is the state the hub mirrors to its viewers
type SnapshotSource interface {
	Snapshot() state.Snapshot
	Subscribe(l state.Listener) func()
}

// Hub maintains the set of connected viewers and pushes every state change to them.
type Hub struct {
	// Registered viewers.
	clients map[string]*Client

	// Register requests from the viewers.
	register chan *Client

	// Unregister requests from viewers.
	unregister chan *Client

	// notify wakes the loop when a newer snapshot is waiting in latest.
	notify chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	latestMu sync.Mutex
	latest   *state.Snapshot

	source SnapshotSource
	done   chan struct{}
	logger *zap.Logger
}

// NewHub creates a new viewer hub over source
func NewHub(source SnapshotSource, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan struct{}, 1),
		source:     source,
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	unsubscribe := h.source.Subscribe(h.publish)
	defer func() {
		unsubscribe()
		close(h.done)

		h.mu.Lock()
		for id, client := range h.clients {
			delete(h.clients, id)
			close(client.send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))
			h.sendTo(client, h.source.Snapshot())

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-h.notify:
			h.latestMu.Lock()
			snap := h.latest
			h.latest = nil
			h.latestMu.Unlock()
			if snap != nil {
				h.broadcast(*snap)
			}

		case <-ctx.Done():
			return
		}
	}
}

// ClientCount returns the number of connected viewers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish keeps only the newest snapshot so a slow loop never blocks a state change
func (h *Hub) publish(snap state.Snapshot) {
	h.latestMu.Lock()
	if h.latest == nil || snap.Version > h.latest.Version {
		h.latest = &snap
	}
	h.latestMu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Hub) broadcast(snap state.Snapshot) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.sendTo(client, snap)
	}
}

// sendTo queues snap for client unless the client already has a newer state.
// Only the Run loop calls it.
func (h *Hub) sendTo(client *Client, snap state.Snapshot) {
	if client.synced && snap.Version <= client.version {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}

	select {
	case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		client.version = snap.Version
		client.synced = true
	default:
		h.logger.Warn("Viewer too slow, disconnecting", zap.String("clientID", client.id))
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
}

// Client is a middleman between a viewer connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound snapshots.
	send chan WriteData

	id     string
	logger *zap.Logger

	// version of the last snapshot queued, owned by the hub loop
	version uint64
	synced  bool
}

// HandleUI upgrades the request and streams state snapshots to the viewer.
func (h *Hub) HandleUI(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.New().String()
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan WriteData, 16),
		id:     id,
		logger: h.logger.With(zap.String("clientID", id)),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump drains the viewer connection until it closes. Inbound frames are ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxViewerMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps snapshots from the hub to the viewer connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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
