package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

// AllCommodities room of clients following every commodity
const AllCommodities uint = 0

// ClientMessage message sent by a client
type ClientMessage struct {
	Type string `json:"type"` // refresh
}

// Client one live comparison subscriber
type Client struct {
	Hub           *Hub
	Conn          *websocket.Conn
	UserID        string
	CommodityID   uint
	Session       hargaapi.Session
	Send          chan []byte
	MessageCount  int       // messages received in the current second
	LastResetTime time.Time // last rate counter reset
	RateMu        sync.Mutex
}

// Hub fans comparison events out to the clients of each commodity room
type Hub struct {
	clients map[*Client]bool

	// commodity id -> subscribed clients
	rooms map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	// called when a client asks for a fresh comparison
	onRefresh func(client *Client)
	// called after the last client of a commodity room left
	onRoomEmpty func(commodityID uint)

	mu sync.RWMutex
}

// BroadcastMessage message for one commodity room
type BroadcastMessage struct {
	CommodityID uint
	Message     []byte
}

// NewHub creates a hub; call Run to start it
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[uint]map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
		done:       make(chan struct{}),
	}
}

// SetRefreshHandler installs the handler of client refresh requests
func (h *Hub) SetRefreshHandler(fn func(client *Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRefresh = fn
}

// SetRoomEmptyHandler installs the handler run when a commodity room empties
func (h *Hub) SetRoomEmptyHandler(fn func(commodityID uint)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRoomEmpty = fn
}

// Run processes registrations and broadcasts until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, ok := h.rooms[client.CommodityID]; !ok {
				h.rooms[client.CommodityID] = make(map[*Client]bool)
			}
			h.rooms[client.CommodityID][client] = true
			total := len(h.rooms[client.CommodityID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":      client.UserID,
				"commodity_id": client.CommodityID,
				"room_clients": total,
			})

		case client := <-h.unregister:
			emptied := false
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if room, ok := h.rooms[client.CommodityID]; ok {
					delete(room, client)
					if len(room) == 0 {
						delete(h.rooms, client.CommodityID)
						emptied = true
					}
				}
				close(client.Send)
			}
			onEmpty := h.onRoomEmpty
			h.mu.Unlock()
			if emptied && onEmpty != nil {
				onEmpty(client.CommodityID)
			}
			logger.Info("WebSocket client unregistered", map[string]interface{}{
				"user_id":      client.UserID,
				"commodity_id": client.CommodityID,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			h.deliver(h.rooms[message.CommodityID], message.Message)
			if message.CommodityID != AllCommodities {
				h.deliver(h.rooms[AllCommodities], message.Message)
			}
			h.mu.RUnlock()
		}
	}
}

// deliver must be called with h.mu held
func (h *Hub) deliver(room map[*Client]bool, message []byte) {
	for client := range room {
		select {
		case client.Send <- message:
		default:
			// send buffer full, drop the client asynchronously
			go h.Unregister(client)
			logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
				"user_id": client.UserID,
			})
		}
	}
}

// Stop ends Run
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// SendToRoom queues message for the clients of commodityID and of the all-commodities room
func (h *Hub) SendToRoom(commodityID uint, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Error("Failed to marshal message", err, nil)
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{CommodityID: commodityID, Message: data}:
		return nil
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"commodity_id": commodityID,
		})
		return nil
	}
}

// Register registers a client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount number of clients subscribed to commodityID
func (h *Hub) ClientCount(commodityID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[commodityID])
}

// HandleClientMessage handles one message read from a client
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	if count := client.countMessage(time.Now()); count > maxMessagesPerSecond {
		fields := client.logFields()
		fields["count"] = count
		logger.Warn("Rate limit exceeded", fields)
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type != "refresh" {
		return
	}

	h.mu.RLock()
	refresh := h.onRefresh
	h.mu.RUnlock()
	if refresh != nil {
		refresh(client)
	}
}
