package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeNewMessage  MessageType = "new_message"
	MessageTypeError       MessageType = "error"
)

// previewLength caps the message text carried in notifications
const previewLength = 200

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type     MessageType `json:"type"`
	TicketID string      `json:"ticket_id,omitempty"`
	Message  interface{} `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// NewMessagePayload represents the payload for new message notifications
type NewMessagePayload struct {
	ID         string `json:"id"`
	TicketID   string `json:"ticket_id"`
	SenderType string `json:"sender_type"`
	Preview    string `json:"preview"`
	CreatedAt  string `json:"created_at"`
}

// Hub maintains the set of active clients and fans ticket events out to
// the clients subscribed to that ticket
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Ticket subscriptions: ticketID -> set of clients
	subscriptions map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage
	done        chan struct{}

	mu sync.RWMutex

	logger *slog.Logger
}

type subscriptionRequest struct {
	client   *Client
	ticketID string
}

type broadcastMessage struct {
	ticketID string
	message  []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *broadcastMessage, 256),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.subscriptions = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for ticketID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, ticketID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.ticketID] == nil {
				h.subscriptions[req.ticketID] = make(map[*Client]bool)
			}
			h.subscriptions[req.ticketID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to ticket", slog.String("ticket_id", req.ticketID))
			}

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.ticketID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.ticketID)
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unsubscribed from ticket", slog.String("ticket_id", req.ticketID))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.subscriptions[msg.ticketID] {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub. After the hub stopped, Register and
// the other client calls return without effect.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to a ticket
func (h *Hub) Subscribe(client *Client, ticketID string) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, ticketID: ticketID}:
	case <-h.done:
	}
}

// Unsubscribe unsubscribes a client from a ticket
func (h *Hub) Unsubscribe(client *Client, ticketID string) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, ticketID: ticketID}:
	case <-h.done:
	}
}

// SubscriberCount returns the number of clients watching ticketID
func (h *Hub) SubscriberCount(ticketID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[ticketID])
}

// NotifyNewMessage publishes a stored message to the ticket's subscribers.
// It never blocks the caller: when the broadcast queue is full the event is
// dropped.
func (h *Hub) NotifyNewMessage(ticketID string, message *models.Message) {
	h.BroadcastNewMessage(ticketID, &NewMessagePayload{
		ID:         message.ID,
		TicketID:   ticketID,
		SenderType: string(message.SenderType),
		Preview:    preview(message.Content),
		CreatedAt:  message.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// BroadcastNewMessage broadcasts a new message notification to ticket subscribers
func (h *Hub) BroadcastNewMessage(ticketID string, payload *NewMessagePayload) {
	msg := WSMessage{
		Type:     MessageTypeNewMessage,
		TicketID: ticketID,
		Message:  payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{ticketID: ticketID, message: data}:
	default:
		if h.logger != nil {
			h.logger.Warn("broadcast queue full, dropping notification", slog.String("ticket_id", ticketID))
		}
	}
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength-3]) + "..."
}
