package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"tdh/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// Hub is a websocket hub that maps userID -> set of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewHub creates a new Hub instance for managing notifications.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "feed hub" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
// Clients registered with member false only receive events addressed to their user.
func (h *Hub) Register(userID uint, conn *websocket.Conn, member bool) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New("hub is shutting down")
	}
	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.member.Store(member)
	m[client] = struct{}{}
	h.totalConns++
	middleware.ActiveWebSockets.Inc()
	return client, nil
}

// UnregisterClient removes client; calling it twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		middleware.ActiveWebSockets.Dec()
	}
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// ConnectionCount reports the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Broadcast sends message to all connections for userID
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[userID]; ok {
		data := []byte(message)
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// BroadcastAll sends message to every connected member. Pending accounts are skipped.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			if !c.IsMember() {
				continue
			}
			c.TrySend(data)
		}
	}
}

// PromoteUser lets every connection of userID receive feed broadcasts.
func (h *Hub) PromoteUser(userID uint) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		c.member.Store(true)
	}
}

// Dispatch routes a message received on channel to the matching connections.
func (h *Hub) Dispatch(channel, payload string) {
	if channel == broadcastChannel {
		h.BroadcastAll(payload)
		return
	}
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
		return
	}
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
		return
	}
	if eventType(payload) == EventAccountApproved {
		h.PromoteUser(uint(userID))
	}
	h.Broadcast(uint(userID), payload)
}

func eventType(payload string) string {
	var ev struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ""
	}
	return ev.Type
}

// StartWiring connects the Notifier to this hub: it subscribes to Redis and
// forwards messages to matching connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, h.Dispatch)
}

// Shutdown closes all websocket connections and refuses new ones.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for userID, userConns := range h.conns {
		for client := range userConns {
			middleware.ActiveWebSockets.Dec()
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				middleware.Logger.Debug("failed to write close message", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			}
			_ = client.Conn.Close()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
