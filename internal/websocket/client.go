package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// lookupTimeout bounds the ticket check done for each subscribe
	lookupTimeout = 5 * time.Second

	// maxWatchedTickets caps the tickets one connection may watch
	maxWatchedTickets = 50

	sendBuffer = 256
)

// TicketLookup resolves the tickets a client asks to watch
type TicketLookup interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
}

// TicketState is sent back on a successful subscribe so the UI can render
// the ticket badge before the first event arrives
type TicketState struct {
	TicketID                 string `json:"ticket_id"`
	Status                   string `json:"status"`
	HasUnreadCustomerMessage bool   `json:"has_unread_customer_message"`
}

// Client is one staff UI connection watching a set of tickets
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	tickets  TicketLookup
	send     chan []byte
	watching map[string]struct{}
	logger   *slog.Logger
}

// NewClient creates a Client. Subscriptions to tickets unknown to tickets
// are refused; a nil lookup skips the check.
func NewClient(hub *Hub, conn *websocket.Conn, tickets TicketLookup, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		tickets:  tickets,
		send:     make(chan []byte, sendBuffer),
		watching: make(map[string]struct{}),
		logger:   logger,
	}
}

// ReadPump reads subscribe/unsubscribe requests until the connection drops,
// then removes the client from the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && c.logger != nil {
				c.logger.Warn("websocket closed unexpectedly",
					slog.Int("watching", len(c.watching)),
					slog.Any("error", err))
			}
			return
		}
		c.handleMessage(data)
	}
}

// WritePump forwards queued events to the connection and keeps it alive
// with pings. It exits when the hub closes the send channel.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

func (c *Client) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		c.watch(msg.TicketID)
	case MessageTypeUnsubscribe:
		c.unwatch(msg.TicketID)
	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) watch(ticketID string) {
	if ticketID == "" {
		c.sendError("ticket_id is required")
		return
	}
	if _, ok := c.watching[ticketID]; !ok && len(c.watching) >= maxWatchedTickets {
		c.sendError("too many subscriptions")
		return
	}

	state := TicketState{TicketID: ticketID}
	if c.tickets != nil {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		ticket, err := c.tickets.GetByID(ctx, ticketID)
		cancel()
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.sendError("ticket not found")
			return
		case err != nil:
			if c.logger != nil {
				c.logger.Error("ticket lookup failed", slog.String("ticket_id", ticketID), slog.Any("error", err))
			}
			c.sendError("ticket lookup failed")
			return
		}
		state.Status = string(ticket.Status)
		state.HasUnreadCustomerMessage = ticket.HasUnreadCustomerMessage
	}

	c.watching[ticketID] = struct{}{}
	c.hub.Subscribe(c, ticketID)
	c.queue(WSMessage{Type: MessageTypeSubscribed, TicketID: ticketID, Message: state})
}

func (c *Client) unwatch(ticketID string) {
	if ticketID == "" {
		c.sendError("ticket_id is required")
		return
	}
	delete(c.watching, ticketID)
	c.hub.Unsubscribe(c, ticketID)
}

func (c *Client) sendError(errMsg string) {
	c.queue(WSMessage{Type: MessageTypeError, Error: errMsg})
}

// queue hands msg to the write pump, dropping it when the buffer is full
func (c *Client) queue(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
