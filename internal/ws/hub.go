package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/plaetorius/streambet/internal/chain"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/realtime"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 256              // messages in each client send channel
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint, pinned to one topic.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte // buffered outbound message queue
	topic     string      // bus topic this client receives
	profileID uuid.UUID   // zero-value = anonymous
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub bridges realtime bus topics to WebSocket clients. Each browser
// connection joins one topic (a stream's bet feed or the global results
// feed); the hub subscribes to a bus topic on first interest and fans every
// envelope out to that topic's clients, preserving per-publisher order.
// Run() must be called in a dedicated goroutine before ServeWs is used.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	bridged map[string]bool // bus topics already subscribed

	// channels consumed by Run()
	broadcast  chan topicMessage
	register   chan *Client
	unregister chan *Client

	bus       realtime.Bus
	tracker   Tracker
	ctx       context.Context
	jwtSecret []byte
	log       *slog.Logger

	// upgrader is safe for concurrent use after construction.
	upgrader websocket.Upgrader
}

type topicMessage struct {
	topic string
	data  []byte
}

// Tracker is the minimal interface the hub needs from the book service so a
// newly watched stream starts aggregating immediately.
type Tracker interface {
	Track(ctx context.Context, platform, name string) error
}

// NewHub creates a Hub ready to be started with Run(). ctx bounds every bus
// subscription the hub opens. jwtSecret may be nil; WS connections are then
// treated as anonymous.
func NewHub(ctx context.Context, bus realtime.Bus, tracker Tracker, jwtSecret []byte, allowedOrigins []string, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		bridged:    make(map[string]bool),
		broadcast:  make(chan topicMessage, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		bus:        bus,
		tracker:    tracker,
		ctx:        ctx,
		jwtSecret:  jwtSecret,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run — hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration, and broadcast events
// sequentially. Call it once as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.topic != msg.topic {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client's buffer full — drop the message for this client.
					// The writePump will detect a stalled connection separately.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConnectedCount returns the current number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────────────────────────────────────────────────────────────────
// Bus bridging
// ──────────────────────────────────────────────────────────────────────────────

// ensureBridge subscribes the hub to a bus topic on first interest and pumps
// every envelope to the topic's clients.
func (h *Hub) ensureBridge(topic string) {
	h.mu.Lock()
	if h.bridged[topic] {
		h.mu.Unlock()
		return
	}
	h.bridged[topic] = true
	h.mu.Unlock()

	sub, err := h.bus.Subscribe(h.ctx, topic)
	if err != nil {
		h.log.Error("ws: bridge subscribe failed", "topic", topic, "error", err)
		h.mu.Lock()
		delete(h.bridged, topic)
		h.mu.Unlock()
		return
	}

	go func() {
		for env := range sub {
			var payload interface{} = env.Payload
			data, err := json.Marshal(EventMessage{Type: MsgTypeEvent, Event: env.Event, Payload: payload})
			if err != nil {
				continue
			}
			select {
			case h.broadcast <- topicMessage{topic: topic, data: data}:
			default:
				h.log.Warn("ws: broadcast channel full, message dropped", "topic", topic)
			}
		}
	}()
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs — HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeStream upgrades a connection onto a stream's bet topic. The stream
// starts being tracked and bridged on first viewer.
func (h *Hub) ServeStream(w http.ResponseWriter, r *http.Request, platform, name string) {
	if h.tracker != nil {
		if err := h.tracker.Track(h.ctx, platform, name); err != nil {
			h.log.Error("ws: track failed", "platform", platform, "name", name, "error", err)
		}
	}
	h.serve(w, r, realtime.TopicBetStream(platform, name, realtime.KindAll))
}

// ServeResults upgrades a connection onto the global results topic.
func (h *Hub) ServeResults(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, realtime.ResultsTopic)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws: upgrade failed", "error", err)
		return
	}

	var profileID uuid.UUID // zero = anonymous
	if token := r.URL.Query().Get("token"); token != "" && len(h.jwtSecret) > 0 {
		profileID = h.parseJWT(token)
	}

	h.ensureBridge(topic)

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		topic:     topic,
		profileID: profileID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// parseJWT extracts the profile UUID from a signed session token.
// Returns uuid.Nil on any failure (treated as anonymous).
func (h *Hub) parseJWT(tokenString string) uuid.UUID {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return uuid.Nil
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil
	}
	sub, _ := claims.GetSubject()
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection. It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the WebSocket connection. Only pong messages
// are handled (they reset the read deadline). All other inbound messages are
// discarded — this is a server-push-only protocol. When the connection drops
// the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("ws: unexpected close", "profile_id", c.profileID, "error", err)
			}
			return
		}
		// All inbound messages are silently dropped; server is push-only.
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Per-client notifications — implements service.Notifier
// ──────────────────────────────────────────────────────────────────────────────

// NotifyStep pushes placement progress to the placing user's connections.
func (h *Hub) NotifyStep(profileID uuid.UUID, marketID uuid.UUID, step chain.TxStep, message string) {
	h.sendToProfile(profileID, TxStepMessage{
		Type:     MsgTypeTxStep,
		MarketID: marketID,
		Step:     step,
		Message:  message,
	})
}

// NotifyOutcome pushes a settlement result to the bettor's connections.
func (h *Hub) NotifyOutcome(profileID uuid.UUID, outcome domain.BetOutcome) {
	h.sendToProfile(profileID, NewSettlementMessage(outcome))
}

// NotifyBalance pushes a refreshed balance to the user's connections.
func (h *Hub) NotifyBalance(profileID uuid.UUID, balance decimal.Decimal) {
	h.sendToProfile(profileID, BalanceMessage{Type: MsgTypeBalance, Balance: balance})
}

// sendToProfile delivers a message to every connection authenticated as the
// given profile, across all topics.
func (h *Hub) sendToProfile(profileID uuid.UUID, v interface{}) {
	if profileID == uuid.Nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("ws: marshal error", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.profileID != profileID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}
