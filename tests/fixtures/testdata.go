package fixtures

import (
	"encoding/base64"
	"time"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
)

// TicketBuilder creates test Ticket instances with fluent API
type TicketBuilder struct {
	ticket models.Ticket
}

// NewTicketBuilder creates a new TicketBuilder with sensible defaults
func NewTicketBuilder() *TicketBuilder {
	now := time.Now()
	return &TicketBuilder{
		ticket: models.Ticket{
			ID:        "T1",
			Title:     "Help",
			Status:    models.StatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// WithID sets the ticket ID
func (b *TicketBuilder) WithID(id string) *TicketBuilder {
	b.ticket.ID = id
	return b
}

// WithTitle sets the ticket title
func (b *TicketBuilder) WithTitle(title string) *TicketBuilder {
	b.ticket.Title = title
	return b
}

// WithStatus sets the ticket status
func (b *TicketBuilder) WithStatus(status models.TicketStatus) *TicketBuilder {
	b.ticket.Status = status
	return b
}

// WithCustomer links a customer
func (b *TicketBuilder) WithCustomer(customer *models.Customer) *TicketBuilder {
	b.ticket.CustomerID = &customer.ID
	b.ticket.Customer = customer
	return b
}

// WithUnread sets the unread-customer-message flag
func (b *TicketBuilder) WithUnread(unread bool) *TicketBuilder {
	b.ticket.HasUnreadCustomerMessage = unread
	return b
}

// Build returns a pointer to the built Ticket
func (b *TicketBuilder) Build() *models.Ticket {
	t := b.ticket
	return &t
}

// NewCustomer returns a customer with the given id and email
func NewCustomer(id, email string) *models.Customer {
	return &models.Customer{ID: id, Email: email, CreatedAt: time.Now()}
}

// NewMessage returns a message for a ticket
func NewMessage(id, ticketID string, sender models.SenderType, content string) models.Message {
	return models.Message{
		ID:         id,
		TicketID:   ticketID,
		SenderType: sender,
		Content:    content,
		CreatedAt:  time.Now(),
	}
}

// NewTicketAttachment returns attachment metadata stored under the usual key
func NewTicketAttachment(id, ticketID, name string) models.TicketAttachment {
	return models.TicketAttachment{
		ID:            id,
		TicketID:      ticketID,
		FileName:      name,
		FileType:      "application/pdf",
		FileSize:      1024,
		StorageBucket: "ticket-attachments",
		StoragePath:   ticketID + "/1700000000000-" + name,
		UploadedBy:    "a@b.com",
		CreatedAt:     time.Now(),
	}
}

// PayloadBuilder creates inbound webhook payloads
type PayloadBuilder struct {
	payload inbound.WebhookPayload
}

// NewPayloadBuilder starts from the payload {From: "a@b.com", Subject: "Help", TextBody: "It's broken"}
func NewPayloadBuilder() *PayloadBuilder {
	return &PayloadBuilder{
		payload: inbound.WebhookPayload{
			From:     "a@b.com",
			Subject:  "Help",
			TextBody: "It's broken",
		},
	}
}

// WithFrom sets the plain sender
func (b *PayloadBuilder) WithFrom(from string) *PayloadBuilder {
	b.payload.From = from
	return b
}

// WithFromFull sets the structured sender
func (b *PayloadBuilder) WithFromFull(email, name string) *PayloadBuilder {
	b.payload.FromFull = &inbound.WebhookAddress{Email: email, Name: name}
	return b
}

// WithSubject sets the subject
func (b *PayloadBuilder) WithSubject(subject string) *PayloadBuilder {
	b.payload.Subject = subject
	return b
}

// WithBodies sets text, HTML and stripped reply bodies
func (b *PayloadBuilder) WithBodies(text, html, stripped string) *PayloadBuilder {
	b.payload.TextBody = text
	b.payload.HtmlBody = html
	b.payload.StrippedTextReply = stripped
	return b
}

// WithAttachment adds an attachment, base64-encoding data
func (b *PayloadBuilder) WithAttachment(name, contentType string, data []byte) *PayloadBuilder {
	b.payload.Attachments = append(b.payload.Attachments, inbound.WebhookAttachment{
		Name:          name,
		ContentType:   contentType,
		Content:       base64.StdEncoding.EncodeToString(data),
		ContentLength: int64(len(data)),
	})
	return b
}

// WithRawAttachment adds an attachment whose content is used as given
func (b *PayloadBuilder) WithRawAttachment(name, contentType, content string) *PayloadBuilder {
	b.payload.Attachments = append(b.payload.Attachments, inbound.WebhookAttachment{
		Name:        name,
		ContentType: contentType,
		Content:     content,
	})
	return b
}

// Build returns the payload
func (b *PayloadBuilder) Build() *inbound.WebhookPayload {
	p := b.payload
	return &p
}

// Email converts the payload into an inbound email, panicking on a missing sender
func (b *PayloadBuilder) Email() *inbound.Email {
	email, err := b.Build().Email()
	if err != nil {
		panic(err)
	}
	return email
}
