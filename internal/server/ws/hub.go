// Package ws fans market-state updates out to browser WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// Envelope is the wire shape of every hub message: a type tag and a payload.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The CORS middleware owns origin policy for the REST surface; the
		// hub accepts any origin the browser presents.
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages connected WebSocket clients and broadcasts market updates and
// alert triggers to all of them. Wire it to the stores with Attach.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	state      *market.State
	logger     *slog.Logger
	startedAt  time.Time
}

// NewHub creates a hub. The market state is used to send each new client a
// full snapshot on connect so panels render before the first live update.
func NewHub(state *market.State, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		state:      state,
		logger:     logger.With(slog.String("component", "ws_hub")),
		startedAt:  time.Now().UTC(),
	}
}

// AlertSource is anything that can report alert triggers; the alert store
// implements it.
type AlertSource interface {
	OnTriggered(func(domain.TriggeredAlert))
}

// Attach registers the hub's broadcast callbacks on the market state and
// alert store. Call once during wiring, before Run.
func (h *Hub) Attach(alerts AlertSource) {
	h.state.OnUpdate(func(u market.Update) {
		switch u.Kind {
		case market.UpdateTicker:
			h.Broadcast("ticker", u.Ticker)
		case market.UpdateOrderBook:
			h.Broadcast("order_book", u.OrderBook)
		case market.UpdateHistory:
			h.Broadcast("history_updated", map[string]string{"symbol": u.Symbol})
		case market.UpdateStatus:
			h.Broadcast("connection_status", map[string]string{"status": string(u.Status)})
		}
	})
	if alerts != nil {
		alerts.OnTriggered(func(rec domain.TriggeredAlert) {
			h.Broadcast("alert_triggered", rec)
		})
	}
}

// Broadcast queues one typed envelope for delivery to every client. Messages
// are dropped when the hub's queue is full rather than blocking the caller,
// since callers sit on the ingestion hot path.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error("marshal broadcast failed",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			slog.String("type", msgType),
		)
	}
}

// Run starts the hub's main event loop. It should be called in a goroutine
// and exits when the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Unblocks any register/unregister attempts that arrive after
			// the loop stops draining them.
			close(h.done)
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return ctx.Err()

		case c := <-h.register:
			h.clients[c] = true
			h.logger.Info("client connected",
				slog.Int("total_clients", len(h.clients)),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.logger.Info("client disconnected",
				slog.Int("total_clients", len(h.clients)),
			)

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client's send buffer is full; drop the message.
					h.logger.Warn("dropping message for slow client")
				}
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.sendSnapshot()

	go c.writePump()
	go c.readPump()
}

// sendSnapshot queues the full current state so a fresh client can render
// without waiting for live traffic.
func (c *client) sendSnapshot() {
	if c.hub.state == nil {
		return
	}
	queue := func(msgType string, payload any) {
		data, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
		if err != nil {
			return
		}
		select {
		case c.send <- data:
		default:
		}
	}

	queue("connection_status", map[string]string{
		"status": string(c.hub.state.ConnectionStatus()),
	})
	for _, snap := range c.hub.state.Tickers() {
		queue("ticker", snap)
	}
	if book, ok := c.hub.state.OrderBook(c.hub.state.SelectedSymbol()); ok {
		queue("order_book", book)
	}
}

// readPump drains inbound frames. Clients do not speak any protocol beyond
// pong keepalives; anything they send is ignored.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection, with
// periodic ping frames for keepalive.
func (c *client) writePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
