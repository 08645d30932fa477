package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
)

// Mode tells whether an email opened a ticket or continued one
type Mode string

const (
	ModeReply     Mode = "reply"
	ModeNewTicket Mode = "new_ticket"
)

// Stage names the primary write that failed
type Stage string

const (
	StageReplyMessage Stage = "reply_message"
	StageTicket       Stage = "ticket"
	StageFirstMessage Stage = "first_message"
)

// StageError reports a failed primary write. Attachment failures never
// produce one.
type StageError struct {
	Stage    Stage
	TicketID string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("inbound %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result describes a processed email
type Result struct {
	Mode        Mode
	TicketID    string
	CustomerID  *string
	MessageID   string
	Attachments AttachmentReport
}

// Notifier is told about every stored customer message
type Notifier interface {
	NotifyNewMessage(ticketID string, message *models.Message)
}

// Processor runs the ingestion pipeline for one email at a time. It holds no
// per-email state and is safe for concurrent use.
type Processor struct {
	customers   repository.CustomerRepository
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	attachments *AttachmentIngestor
	notifier    Notifier
	ioTimeout   time.Duration
	logger      *slog.Logger
}

// DefaultIOTimeout bounds each store call when no timeout is configured
const DefaultIOTimeout = 10 * time.Second

// NewProcessor creates a Processor. A non-positive ioTimeout falls back to
// DefaultIOTimeout.
func NewProcessor(
	customers repository.CustomerRepository,
	tickets repository.TicketRepository,
	messages repository.MessageRepository,
	attachments *AttachmentIngestor,
	ioTimeout time.Duration,
	logger *slog.Logger,
) *Processor {
	if ioTimeout <= 0 {
		ioTimeout = DefaultIOTimeout
	}
	return &Processor{
		customers:   customers,
		tickets:     tickets,
		messages:    messages,
		attachments: attachments,
		ioTimeout:   ioTimeout,
		logger:      logger,
	}
}

// SetNotifier registers a listener for new customer messages
func (p *Processor) SetNotifier(n Notifier) {
	p.notifier = n
}

// Process classifies the email by its subject tag and writes it as a reply
// or as a new ticket. A *StageError is returned when a primary write fails;
// attachments are only processed after the message is stored.
//
// Processing is not idempotent: submitting the same email twice creates two
// messages, or two tickets.
func (p *Processor) Process(ctx context.Context, email *Email) (*Result, error) {
	content := ResolveContent(email.TextBody, email.HTMLBody, email.StrippedReply)

	if ticketID, ok := CorrelateThread(email.Subject); ok {
		return p.processReply(ctx, email, ticketID, content)
	}
	return p.processNewTicket(ctx, email, content)
}

func (p *Processor) processReply(ctx context.Context, email *Email, ticketID, content string) (*Result, error) {
	message, err := p.appendCustomerMessage(ctx, ticketID, content)
	if err != nil {
		return nil, &StageError{Stage: StageReplyMessage, TicketID: ticketID, Err: err}
	}

	result := &Result{Mode: ModeReply, TicketID: ticketID, MessageID: message.ID}
	result.Attachments = p.ingestAttachments(ctx, ticketID, email)

	p.logInfo("reply stored",
		slog.String("ticket_id", ticketID),
		slog.Int("attachments", len(email.Attachments)),
		slog.Int("attachments_failed", result.Attachments.Failed()))

	return result, nil
}

func (p *Processor) processNewTicket(ctx context.Context, email *Email, content string) (*Result, error) {
	customerID := p.resolveCustomer(ctx, email.From)

	ticket := &models.Ticket{
		Title:      email.Subject,
		CustomerID: customerID,
		Status:     models.StatusOpen,
	}

	createCtx, cancel := context.WithTimeout(ctx, p.ioTimeout)
	err := p.tickets.Create(createCtx, ticket)
	cancel()
	if err != nil {
		return nil, &StageError{Stage: StageTicket, Err: err}
	}

	// A failed first message leaves the ticket in place without rollback.
	message, err := p.appendCustomerMessage(ctx, ticket.ID, content)
	if err != nil {
		return nil, &StageError{Stage: StageFirstMessage, TicketID: ticket.ID, Err: err}
	}

	result := &Result{
		Mode:       ModeNewTicket,
		TicketID:   ticket.ID,
		CustomerID: customerID,
		MessageID:  message.ID,
	}
	result.Attachments = p.ingestAttachments(ctx, ticket.ID, email)

	p.logInfo("ticket created",
		slog.String("ticket_id", ticket.ID),
		slog.Bool("known_customer", customerID != nil),
		slog.Int("attachments", len(email.Attachments)),
		slog.Int("attachments_failed", result.Attachments.Failed()))

	return result, nil
}

// resolveCustomer looks up the sender. Lookup errors are logged and the
// ticket is created without a customer.
func (p *Processor) resolveCustomer(ctx context.Context, from string) *string {
	lookupCtx, cancel := context.WithTimeout(ctx, p.ioTimeout)
	defer cancel()

	id, err := p.customers.FindIDByEmail(lookupCtx, from)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("customer lookup failed, continuing without customer",
				slog.Any("error", err))
		}
		return nil
	}
	return id
}

func (p *Processor) appendCustomerMessage(ctx context.Context, ticketID, content string) (*models.Message, error) {
	message := &models.Message{
		TicketID:   ticketID,
		SenderType: models.SenderCustomer,
		Content:    content,
	}

	appendCtx, cancel := context.WithTimeout(ctx, p.ioTimeout)
	defer cancel()
	if err := p.messages.Append(appendCtx, message); err != nil {
		return nil, err
	}

	if p.notifier != nil {
		p.notifier.NotifyNewMessage(ticketID, message)
	}
	return message, nil
}

func (p *Processor) ingestAttachments(ctx context.Context, ticketID string, email *Email) AttachmentReport {
	if len(email.Attachments) == 0 || p.attachments == nil {
		return AttachmentReport{}
	}
	return p.attachments.Ingest(ctx, ticketID, email.From, email.Attachments)
}

func (p *Processor) logInfo(msg string, attrs ...any) {
	if p.logger != nil {
		p.logger.Info(msg, attrs...)
	}
}
