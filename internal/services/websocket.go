package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

const (
	EventListingCreated = "listing_created"
	EventListingUpdated = "listing_updated"
	EventListingDeleted = "listing_deleted"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one websocket connection.
type Client struct {
	ID   uint
	Role string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type outbound struct {
	data  []byte
	match func(*Client) bool
}

// Hub fans listing events out to connected clients. Client membership is
// only changed from the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHub creates a hub that accepts connections from allowedOrigins. An
// empty list accepts any origin.
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, sendBufferSize),
		done:       make(chan struct{}),
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.log.Debug("websocket client connected", zap.Uint("userId", client.ID), zap.String("role", client.Role))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.log.Debug("websocket client disconnected", zap.Uint("userId", client.ID))

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if msg.match != nil && !msg.match(client) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					h.log.Warn("dropping slow websocket client", zap.Uint("userId", client.ID))
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("websocket broadcast queue full, event dropped")
	}
}

func (h *Hub) BroadcastToAll(message []byte) {
	h.enqueue(outbound{data: message})
}

func (h *Hub) BroadcastToRole(role string, message []byte) {
	h.enqueue(outbound{data: message, match: func(c *Client) bool { return c.Role == role }})
}

func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.enqueue(outbound{data: message, match: func(c *Client) bool { return c.ID == userID }})
}

// PublishListingEvent tells every client about a listing change. Deletes
// carry only the id.
func (h *Hub) PublishListingEvent(eventType string, listing models.Listing) {
	var data interface{} = listing
	if eventType == EventListingDeleted {
		data = map[string]string{"id": listing.ID}
	}
	message, err := json.Marshal(WebSocketMessage{Type: eventType, Data: data})
	if err != nil {
		h.log.Error("failed to marshal listing event", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.BroadcastToAll(message)
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint, role string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   userID,
		Role: role,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		hub:  h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only keeps the connection alive; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.Uint("userId", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.Warn("websocket write error", zap.Uint("userId", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
