package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"trading_core/internal/event"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Gauge tracks connected clients; *infra.Metrics satisfies it.
type Gauge interface {
	IncrementFeedClients()
	DecrementFeedClients()
}

// Message is the JSON frame sent to clients.
type Message struct {
	Type   event.Type  `json:"type"`
	Symbol string      `json:"symbol"`
	Data   event.Event `json:"data"`
}

type outbound struct {
	symbol  string
	payload []byte
}

// Hub broadcasts trade and order events to websocket clients.
// Clients subscribe to one symbol with ?symbol=, or to all symbols when it is absent.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	done       chan struct{}

	upgrader websocket.Upgrader
	gauge    Gauge
	logger   *slog.Logger
}

// NewHub creates a hub. gauge may be nil.
func NewHub(gauge Gauge, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, sendBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		gauge:  gauge,
		logger: logger,
	}
}

// Run owns the client set until ctx is done. It MUST be called once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.logger.Info("Feed hub stopped")
			return nil
		case c := <-h.register:
			h.clients[c] = struct{}{}
			if h.gauge != nil {
				h.gauge.IncrementFeedClients()
			}
			h.logger.Info("Feed client connected",
				slog.String("remote", c.id),
				slog.String("symbol", c.symbol),
				slog.Int("total", len(h.clients)),
			)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("Feed client disconnected", slog.String("remote", c.id), slog.Int("total", len(h.clients)))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if c.symbol != "" && c.symbol != msg.symbol {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// Send buffer full, disconnect
					h.drop(c)
					h.logger.Warn("Feed client too slow, dropped", slog.String("remote", c.id))
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	if h.gauge != nil {
		h.gauge.DecrementFeedClients()
	}
}

// Publish encodes ev and queues it for broadcast without blocking.
// ev may be released to its pool once Publish returns.
func (h *Hub) Publish(ev event.Event) {
	msg := Message{Type: ev.GetType(), Data: ev}
	switch e := ev.(type) {
	case *event.TradeEvent:
		msg.Symbol = e.Symbol
	case *event.OrderEvent:
		msg.Symbol = e.Symbol
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal feed message", slog.Any("error", err))
		return
	}

	select {
	case h.broadcast <- outbound{symbol: msg.Symbol, payload: payload}:
	default:
		h.logger.Warn("Feed broadcast queue full, dropping message", slog.String("symbol", msg.Symbol))
	}
}

// ServeHTTP upgrades the request and attaches a client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Feed upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		id:     conn.RemoteAddr().String(),
		symbol: r.URL.Query().Get("symbol"),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// NewServer returns an HTTP server exposing the hub on /ws/trades and a /healthz probe.
func NewServer(addr string, h *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws/trades", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	id     string
	symbol string
}

// readPump discards client frames and detects disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Feed read error", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
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
