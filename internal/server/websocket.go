package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket message types.
const (
	MessageGameState = "game_state"
	MessageError     = "error"
	MessageSync      = "sync"
)

// WSMessage is the envelope for every WebSocket frame in both directions. Incoming
// command messages carry a CommandRequest in Data; its type is taken from the envelope.
type WSMessage struct {
	Type    string          `json:"type"`
	TableID string          `json:"table_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encodeMessage(msgType, tableID string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, TableID: tableID, Data: data})
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	tableID string
	// ctx is cancelled when the read loop exits.
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub fans table state out to WebSocket clients. Every state change published on the
// table manager's bus triggers a game_state broadcast to the clients of that table.
//
// Events can arrive out of order when commands race, so broadcasts never go backwards:
// a state whose Seq is not above the last one sent for its table is dropped.
type Hub struct {
	svc      *Service
	logger   *zap.Logger
	opts     config.WebSocketConfig
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
	handle  int

	// seqMu is taken before mu, never after.
	seqMu sync.Mutex
	sent  map[string]uint64
}

// NewHub subscribes a hub to the service's table events.
func NewHub(svc *Service, opts config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	h := &Hub{
		svc:     svc,
		logger:  logger,
		opts:    opts,
		clients: make(map[string]map[*wsClient]struct{}),
		sent:    make(map[string]uint64),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	h.handle = svc.Tables().Bus().Subscribe(func(e game.Event) {
		h.broadcastState(e.SessionID)
	})
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.opts.AllowedOrigins, origin)
}

// ServeHTTP upgrades /ws?table={id} and sends the table's state as the first message.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("table")
	state, err := h.svc.State(tableID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsClient{
		conn:    conn,
		send:    make(chan []byte, h.opts.SendBuffer),
		tableID: tableID,
		ctx:     ctx,
		cancel:  cancel,
	}
	h.register(c)
	h.reply(c, MessageGameState, state)

	go h.writePump(c)
	go h.readPump(c)
}

// Close detaches the hub from the bus and disconnects every client.
func (h *Hub) Close() {
	h.svc.Tables().Bus().Unsubscribe(h.handle)

	h.mu.Lock()
	defer h.mu.Unlock()
	for tableID, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, tableID)
	}
}

// ClientCount returns the number of clients watching a table.
func (h *Hub) ClientCount(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tableID])
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.tableID] == nil {
		h.clients[c.tableID] = make(map[*wsClient]struct{})
	}
	h.clients[c.tableID][c] = struct{}{}

	h.logger.Debug("websocket client registered",
		zap.String("table_id", c.tableID),
		zap.Int("clients", len(h.clients[c.tableID])),
	)
}

// unregister removes c and closes its send channel. Sends happen under the read lock,
// so the channel is never closed under a sender.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	clients := h.clients[c.tableID]
	if _, ok := clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	empty := len(clients) == 0
	if empty {
		delete(h.clients, c.tableID)
	}
	close(c.send)
	h.mu.Unlock()

	if empty {
		h.forgetSeq(c.tableID)
	}
	h.logger.Debug("websocket client unregistered", zap.String("table_id", c.tableID))
}

// forgetSeq drops the broadcast watermark of a table nobody watches any more.
func (h *Hub) forgetSeq(tableID string) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()

	h.mu.RLock()
	watched := len(h.clients[tableID]) > 0
	h.mu.RUnlock()
	if !watched {
		delete(h.sent, tableID)
	}
}

// lastSent returns the Seq of the newest state broadcast for a table.
func (h *Hub) lastSent(tableID string) uint64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	return h.sent[tableID]
}

func (h *Hub) broadcastState(tableID string) {
	state, err := h.svc.State(tableID)
	if err != nil {
		return
	}
	msg, err := encodeMessage(MessageGameState, tableID, state)
	if err != nil {
		h.logger.Error("failed to encode game state", zap.Error(err))
		return
	}

	var slow []*wsClient
	h.seqMu.Lock()
	h.mu.RLock()
	clients := h.clients[tableID]
	if len(clients) > 0 && state.Seq > h.sent[tableID] {
		h.sent[tableID] = state.Seq
		for c := range clients {
			select {
			case c.send <- msg:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()
	h.seqMu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", zap.String("table_id", tableID))
		h.unregister(c)
	}
}

// reply sends one message to a single client if it is still registered.
func (h *Hub) reply(c *wsClient, msgType string, payload any) {
	msg, err := encodeMessage(msgType, c.tableID, payload)
	if err != nil {
		h.logger.Error("failed to encode websocket reply", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.tableID][c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) handleMessage(c *wsClient, msg WSMessage) {
	if msg.Type == MessageSync {
		state, err := h.svc.State(c.tableID)
		if err != nil {
			h.reply(c, MessageError, errorPayload{Message: err.Error()})
			return
		}
		h.reply(c, MessageGameState, state)
		return
	}

	var req CommandRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.reply(c, MessageError, errorPayload{Message: "malformed data: " + err.Error()})
			return
		}
	}
	req.Type = msg.Type

	// The resulting state reaches this client through the bus broadcast.
	if _, err := h.svc.Apply(c.ctx, c.tableID, req); err != nil {
		h.reply(c, MessageError, errorPayload{Message: err.Error()})
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		c.cancel()
		h.unregister(c)
		c.conn.Close()
	}()

	pongWait := h.opts.PingInterval + h.opts.WriteWait
	c.conn.SetReadLimit(maxBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(c, MessageError, errorPayload{Message: "malformed message"})
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug("websocket ping failed", zap.Error(err))
				}
				return
			}
		}
	}
}
