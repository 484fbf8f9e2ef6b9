package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/client/domain/repositories"
	"github.com/satriahrh/arunika/client/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024 * 1024 // speech arrives in merged PCM chunks

	// ClientIDHeader identifies this client instance to the agent
	ClientIDHeader = "X-Client-ID"
)

var errAlreadyConnected = errors.New("transport already connected")

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// TransportConfig configures the agent connection
type TransportConfig struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Transport is the single duplex connection to the agent.
// Text frames sent before the connection opens are queued and flushed,
// in call order, when it does.
type Transport struct {
	config   TransportConfig
	dialer   websocket.Dialer
	clientID string
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	state     repositories.TransportState
	conn      *websocket.Conn
	pending   [][]byte
	listeners []func(repositories.TransportState)

	// Buffered channel of outbound messages.
	send chan WriteData

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ repositories.Transport = (*Transport)(nil)

// NewTransport creates a transport in the connecting state
func NewTransport(config TransportConfig, m *metrics.Metrics, logger *zap.Logger) *Transport {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	clientID := uuid.New().String()
	t := &Transport{
		config:   config,
		dialer:   websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
		clientID: clientID,
		logger:   logger.With(zap.String("clientID", clientID)),
		metrics:  m,
		state:    repositories.StateConnecting,
		send:     make(chan WriteData, 256),
		done:     make(chan struct{}),
	}
	m.SetTransportState(int(repositories.StateConnecting))
	return t
}

// ClientID returns the identifier sent in the handshake
func (t *Transport) ClientID() string {
	return t.clientID
}

// Connect dials the agent once. Frames are delivered to handler from a single
// goroutine in arrival order until the connection closes.
func (t *Transport) Connect(ctx context.Context, handler repositories.FrameHandler) error {
	t.mu.Lock()
	if t.conn != nil || t.state != repositories.StateConnecting {
		t.mu.Unlock()
		return errAlreadyConnected
	}
	t.mu.Unlock()

	headers := http.Header{}
	headers.Set(ClientIDHeader, t.clientID)

	t.logger.Info("Connecting to agent", zap.String("url", t.config.URL))
	conn, resp, err := t.dialer.DialContext(ctx, t.config.URL, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		t.logger.Error("WebSocket error", zap.Error(err))
		t.shutdown(repositories.StateErrored)
		return fmt.Errorf("failed to connect to %s: %w", t.config.URL, err)
	}

	t.mu.Lock()
	if t.state != repositories.StateConnecting {
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("transport %s before handshake completed", t.state)
	}
	t.conn = conn

	t.wg.Add(2)
	go t.writePump(conn)

	t.setStateLocked(repositories.StateOpen)
	flushed := len(t.pending)
	for _, payload := range t.pending {
		t.enqueueLocked(WriteData{Type: websocket.TextMessage, Payload: payload})
	}
	t.pending = nil
	t.metrics.SetPendingSends(0)
	t.mu.Unlock()

	go t.readPump(conn, handler)

	t.logger.Info("WebSocket connection established", zap.Int("flushedSends", flushed))
	return nil
}

// Send writes a text frame if the connection is open
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != repositories.StateOpen {
		return repositories.ErrTransportUnavailable
	}
	if !t.enqueueLocked(WriteData{Type: websocket.TextMessage, Payload: payload}) {
		return repositories.ErrTransportUnavailable
	}
	return nil
}

// SendGuaranteed writes a text frame now, or exactly once when the connection opens.
// The payload is captured as passed; later changes by the caller have no effect.
func (t *Transport) SendGuaranteed(payload []byte) {
	data := make([]byte, len(payload))
	copy(data, payload)

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case repositories.StateOpen:
		if !t.enqueueLocked(WriteData{Type: websocket.TextMessage, Payload: data}) {
			t.logger.Warn("Dropped message, connection is shutting down")
		}
	case repositories.StateConnecting:
		t.pending = append(t.pending, data)
		t.metrics.SetPendingSends(len(t.pending))
		t.logger.Debug("Deferred message until connection opens", zap.Int("pending", len(t.pending)))
	default:
		t.metrics.FrameDropped("transport_" + t.state.String())
		t.logger.Warn("Dropped message, connection is not available",
			zap.String("state", t.state.String()))
	}
}

// State returns the current lifecycle state
func (t *Transport) State() repositories.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnStateChange registers fn to be called on every state transition.
// fn runs with the transport locked and must not call back into it.
func (t *Transport) OnStateChange(fn func(repositories.TransportState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// PendingSends returns the number of frames waiting for the connection to open
func (t *Transport) PendingSends() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close releases the connection. It is safe to call more than once.
func (t *Transport) Close() error {
	t.shutdown(repositories.StateClosed)
	t.wg.Wait()
	return nil
}

// enqueueLocked hands data to the write pump. t.mu must be held so frames keep call order.
func (t *Transport) enqueueLocked(data WriteData) bool {
	select {
	case t.send <- data:
		return true
	case <-t.done:
		return false
	}
}

func (t *Transport) setStateLocked(state repositories.TransportState) {
	if t.state == state {
		return
	}
	t.logger.Info("Transport state changed",
		zap.String("from", t.state.String()),
		zap.String("to", state.String()))
	t.state = state
	t.metrics.SetTransportState(int(state))
	for _, fn := range t.listeners {
		fn(state)
	}
}

// shutdown moves the transport to a terminal state and stops the pumps
func (t *Transport) shutdown(next repositories.TransportState) {
	t.closeOnce.Do(func() { close(t.done) })

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == repositories.StateConnecting || t.state == repositories.StateOpen {
		t.setStateLocked(next)
	}
	if n := len(t.pending); n > 0 {
		t.logger.Warn("Discarding sends queued before the connection opened", zap.Int("count", n))
		t.pending = nil
		t.metrics.SetPendingSends(0)
	}
}

// readPump pumps messages from the websocket connection to the handler.
func (t *Transport) readPump(conn *websocket.Conn, handler repositories.FrameHandler) {
	defer func() {
		conn.Close()
		t.wg.Done()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				// closed locally
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					t.logger.Error("WebSocket error", zap.Error(err))
					t.shutdown(repositories.StateErrored)
				} else {
					t.logger.Info("WebSocket closed", zap.Error(err))
					t.shutdown(repositories.StateClosed)
				}
			}
			return
		}

		select {
		case <-t.done:
			return
		default:
		}

		switch messageType {
		case websocket.TextMessage:
			handler.HandleText(message)
		case websocket.BinaryMessage:
			handler.HandleBinary(message)
		default:
			t.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the send queue to the websocket connection.
func (t *Transport) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		t.wg.Done()
	}()

	for {
		select {
		case message := <-t.send:
			if err := t.write(conn, message); err != nil {
				t.logger.Error("Failed to write message", zap.Error(err))
				t.shutdown(repositories.StateErrored)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.logger.Error("Failed to write ping", zap.Error(err))
				t.shutdown(repositories.StateErrored)
				return
			}

		case <-t.done:
			t.drain(conn)
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain writes whatever was queued before the transport shut down
func (t *Transport) drain(conn *websocket.Conn) {
	for {
		select {
		case message := <-t.send:
			if err := t.write(conn, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// write sends one queued message and counts it once it reached the connection
func (t *Transport) write(conn *websocket.Conn, message WriteData) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(message.Type, message.Payload); err != nil {
		return err
	}
	t.metrics.FrameSent(frameLabel(message))
	return nil
}

// frameLabel names a written message by its "type" field
func frameLabel(message WriteData) string {
	if message.Type != websocket.TextMessage {
		return "binary"
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message.Payload, &head); err != nil || head.Type == "" {
		return "unknown"
	}
	return head.Type
}
