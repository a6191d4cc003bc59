package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// Hub connects the browser pages to the scheduling core. Inbound frames
// carry foreground-originated schedule requests and permission reports;
// outbound frames broadcast shown-notification acknowledgements and
// fallback presentations to every connected page.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	registry   notify.Scheduler
	gate       *notify.Gate
	mu         sync.RWMutex
}

func NewHub(gate *notify.Gate) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		gate:       gate,
	}
}

// SetScheduler wires the scheduling core in after construction. The hub is
// built before the registry because the registry's delivery engine sends
// through the hub.
func (h *Hub) SetScheduler(s notify.Scheduler) {
	h.registry = s
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] client registered: %s (total: %d)", client.userID, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] client unregistered: %s (total: %d)", client.userID, count)

		case message := <-h.broadcast:
			var stale []*Client
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					stale = append(stale, client)
				}
			}
			h.mu.RUnlock()

			if len(stale) > 0 {
				h.mu.Lock()
				for _, client := range stale {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
						log.Printf("[WS] removed stale client: %s", client.userID)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// BroadcastAll queues a message for every connected page. With nobody
// connected it is simply dropped: delivery is at-most-once.
func (h *Hub) BroadcastAll(msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] marshal error for type %q: %v", msg.Type, err)
		return
	}
	h.broadcast <- data
}

// Publish implements notify.Messenger for the delivery engine.
func (h *Hub) Publish(msg notify.Message) {
	switch m := msg.(type) {
	case notify.ShownMessage:
		h.BroadcastAll(models.WSMessage{
			Type: models.WSTypeNotificationShown,
			Payload: models.ShownPayload{
				Title:     m.Title,
				Timestamp: m.Timestamp.UnixMilli(),
			},
		})
	case notify.ScheduleMessage:
		// Schedule requests only travel page -> server.
	}
}

// Send implements notify.Sender: an open page presents the notification
// itself. Fails when no page is connected so the engine's other channels
// (web push) remain authoritative for background delivery.
func (h *Hub) Send(ctx context.Context, n notify.Notification, tag string) error {
	h.mu.RLock()
	connected := len(h.clients)
	h.mu.RUnlock()
	if connected == 0 {
		return errors.New("no pages connected")
	}

	h.BroadcastAll(models.WSMessage{
		Type: models.WSTypeNotify,
		Payload: map[string]interface{}{
			"title": n.Title,
			"body":  n.Body,
			"tag":   tag,
		},
	})
	return nil
}

func (h *Hub) Name() string { return "hub" }

// ClientCount reports the number of connected pages.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade error for user %s: %v", claims.UserID, err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
	}

	go client.writePump()
	go client.readPump()

	h.register <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[WS] read error for client %s: %v", c.userID, err)
			}
			break
		}

		var wsMsg models.WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			log.Printf("[WS] bad frame from client %s: %v", c.userID, err)
			continue
		}

		c.handleMessage(message, wsMsg.Type)
	}
}

// handleMessage dispatches an inbound frame onto the typed message set the
// scheduling core understands.
func (c *Client) handleMessage(raw []byte, msgType string) {
	switch msgType {
	case models.WSTypeScheduleNotification:
		var frame struct {
			Payload models.SchedulePayload `json:"payload"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("[WS] bad schedule payload from %s: %v", c.userID, err)
			return
		}

		p := frame.Payload
		if p.Title == "" || p.Timestamp == 0 {
			return
		}
		key := p.Key
		if key == "" {
			// Old pages key their schedules by title alone.
			key = p.Title
		}

		msg := notify.ScheduleMessage{
			Key:    key,
			Title:  p.Title,
			Body:   p.Body,
			FireAt: time.UnixMilli(p.Timestamp),
		}
		c.hub.registry.Schedule(msg.Key, msg.FireAt, msg.Title, msg.Body)

	case models.WSTypePermission:
		var frame struct {
			Payload models.PermissionPayload `json:"payload"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("[WS] bad permission payload from %s: %v", c.userID, err)
			return
		}
		c.hub.gate.Report(notify.ParsePermissionState(frame.Payload.State))

	default:
		log.Printf("[WS] unknown message type %q from client %s", msgType, c.userID)
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
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] write error for client %s: %v", c.userID, err)
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
