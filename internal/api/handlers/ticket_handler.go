package handlers

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-helpdesk-backend/internal/errors"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/outbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/validator"
)

// PublicURLer resolves the download address of a stored object
type PublicURLer interface {
	PublicURL(bucket, objectPath string) string
}

// TicketHandler handles the staff ticket API
type TicketHandler struct {
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	attachments repository.AttachmentRepository
	timeEntries repository.TimeEntryRepository
	objects     PublicURLer
	sender      EmailSender
	notifier    inbound.Notifier
	ioTimeout   time.Duration
	logger      *slog.Logger
}

// TicketHandlerConfig holds the dependencies of a TicketHandler
type TicketHandlerConfig struct {
	Tickets     repository.TicketRepository
	Messages    repository.MessageRepository
	Attachments repository.AttachmentRepository
	TimeEntries repository.TimeEntryRepository
	Objects     PublicURLer
	Sender      EmailSender
	Notifier    inbound.Notifier // optional
	IOTimeout   time.Duration
	Logger      *slog.Logger
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(cfg TicketHandlerConfig) *TicketHandler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &TicketHandler{
		tickets:     cfg.Tickets,
		messages:    cfg.Messages,
		attachments: cfg.Attachments,
		timeEntries: cfg.TimeEntries,
		objects:     cfg.Objects,
		sender:      cfg.Sender,
		notifier:    cfg.Notifier,
		ioTimeout:   cfg.IOTimeout,
		logger:      log,
	}
}

// TicketView is a ticket as shown in the staff UI
type TicketView struct {
	models.Ticket
	CustomerEmail    *string `json:"customer_email"`
	TimeSpentSeconds int64   `json:"time_spent_seconds"`
}

// UpdateTicketRequest edits a single ticket field
type UpdateTicketRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// TimeEntryRequest books work time on a ticket
type TimeEntryRequest struct {
	DurationSeconds int    `json:"duration_seconds"`
	UserName        string `json:"user_name"`
}

// ReplyRequest is a support answer to the customer. To overrides the
// customer's stored address.
type ReplyRequest struct {
	Text string `json:"text"`
	To   string `json:"to"`
}

// NoteRequest is an internal note that is never sent to the customer
type NoteRequest struct {
	Content string `json:"content"`
}

// ReplyResult reports a sent reply. MessageLogged is false when the email
// went out but could not be added to the ticket thread.
type ReplyResult struct {
	Delivery      *outbound.Result `json:"delivery"`
	Message       *models.Message  `json:"message,omitempty"`
	MessageLogged bool             `json:"message_logged"`
}

func (h *TicketHandler) ioContext(c echo.Context) (context.Context, context.CancelFunc) {
	if h.ioTimeout <= 0 {
		return context.WithCancel(c.Request().Context())
	}
	return context.WithTimeout(c.Request().Context(), h.ioTimeout)
}

// List handles GET /api/tickets
func (h *TicketHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = validator.ValidatePagination(limit, offset)

	filter := repository.TicketFilter{
		Status:     models.TicketStatus(c.QueryParam("status")),
		CustomerID: c.QueryParam("customer_id"),
		UnreadOnly: c.QueryParam("unread") == "true",
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return response.BadRequest(c, "invalid status")
	}

	ctx, cancel := h.ioContext(c)
	defer cancel()

	tickets, total, err := h.tickets.List(ctx, filter, limit, offset)
	if err != nil {
		h.logger.Error("failed to list tickets", slog.String("error", err.Error()))
		return response.InternalError(c, "failed to list tickets")
	}

	return response.Paginated(c, tickets, total, limit, offset)
}

// Get handles GET /api/tickets/:id
func (h *TicketHandler) Get(c echo.Context) error {
	ctx, cancel := h.ioContext(c)
	defer cancel()

	ticket, err := h.tickets.GetByID(ctx, c.Param("id"))
	if err != nil {
		return ticketLookupError(c, err)
	}

	spent, err := h.timeEntries.TotalSeconds(ctx, ticket.ID)
	if err != nil {
		return response.InternalError(c, "failed to sum time entries")
	}

	view := TicketView{Ticket: *ticket, TimeSpentSeconds: spent}
	if ticket.Customer != nil {
		view.CustomerEmail = &ticket.Customer.Email
	}
	return response.Success(c, view)
}

// Messages handles GET /api/tickets/:id/messages
func (h *TicketHandler) Messages(c echo.Context) error {
	ctx, cancel := h.ioContext(c)
	defer cancel()

	ticket, err := h.tickets.GetByID(ctx, c.Param("id"))
	if err != nil {
		return ticketLookupError(c, err)
	}

	messages, err := h.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return response.InternalError(c, "failed to list messages")
	}
	return response.Success(c, messages)
}

// Attachments handles GET /api/tickets/:id/attachments
func (h *TicketHandler) Attachments(c echo.Context) error {
	ctx, cancel := h.ioContext(c)
	defer cancel()

	ticket, err := h.tickets.GetByID(ctx, c.Param("id"))
	if err != nil {
		return ticketLookupError(c, err)
	}

	attachments, err := h.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return response.InternalError(c, "failed to list attachments")
	}

	views := make([]models.TicketAttachmentView, 0, len(attachments))
	for _, a := range attachments {
		views = append(views, models.TicketAttachmentView{
			TicketAttachment: a,
			PublicURL:        h.objects.PublicURL(a.StorageBucket, a.StoragePath),
		})
	}
	return response.Success(c, views)
}

// Update handles PATCH /api/tickets/:id/update
func (h *TicketHandler) Update(c echo.Context) error {
	var req UpdateTicketRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	req.Value = strings.TrimSpace(req.Value)

	if err := validator.ValidateTicketUpdate(req.Field, req.Value); err != nil {
		return response.BadRequest(c, err.Error())
	}

	ctx, cancel := h.ioContext(c)
	defer cancel()

	id := c.Param("id")
	if err := h.tickets.UpdateField(ctx, id, models.TicketField(req.Field), req.Value); err != nil {
		return ticketLookupError(c, err)
	}

	ticket, err := h.tickets.GetByID(ctx, id)
	if err != nil {
		return ticketLookupError(c, err)
	}
	return response.Success(c, ticket)
}

// MarkRead handles POST /api/tickets/:id/mark-read
func (h *TicketHandler) MarkRead(c echo.Context) error {
	ctx, cancel := h.ioContext(c)
	defer cancel()

	if err := h.tickets.MarkRead(ctx, c.Param("id")); err != nil {
		return ticketLookupError(c, err)
	}
	return response.SuccessWithMessage(c, nil, "ticket marked as read")
}

// LogTime handles POST /api/tickets/:id/time
func (h *TicketHandler) LogTime(c echo.Context) error {
	var req TimeEntryRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if err := validator.ValidateDuration(req.DurationSeconds); err != nil {
		return response.BadRequest(c, err.Error())
	}

	ctx, cancel := h.ioContext(c)
	defer cancel()

	ticket, err := h.tickets.GetByID(ctx, c.Param("id"))
	if err != nil {
		return ticketLookupError(c, err)
	}

	entry := &models.TimeEntry{
		TicketID:        ticket.ID,
		DurationSeconds: req.DurationSeconds,
		UserName:        validator.SanitizeString(req.UserName, 255),
	}
	if err := h.timeEntries.Create(ctx, entry); err != nil {
		h.logger.Error("failed to log time", slog.String("ticket_id", ticket.ID), slog.String("error", err.Error()))
		return response.InternalError(c, "failed to log time")
	}
	return response.Created(c, entry)
}

// Reply handles POST /api/tickets/:id/reply. The email is sent first; the
// support message is only recorded once the provider accepted it.
func (h *TicketHandler) Reply(c echo.Context) error {
	var req ReplyRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return response.BadRequest(c, "text is required")
	}

	ctx, cancel := h.ioContext(c)
	defer cancel()

	ticket, err := h.tickets.GetByID(ctx, c.Param("id"))
	if err != nil {
		return ticketLookupError(c, err)
	}

	to := strings.TrimSpace(req.To)
	if to == "" && ticket.Customer != nil {
		to = ticket.Customer.Email
	}
	if to == "" {
		return response.BadRequest(c, "ticket has no customer email, recipient required")
	}

	delivery, err := h.sender.Send(ctx, outbound.Email{
		To:      to,
		Subject: inbound.ThreadSubject(ticket.Title, ticket.ID),
		HTML:    ReplyHTML(req.Text),
	})
	if err != nil {
		if apperrors.IsInvalidInput(err) {
			return response.BadRequest(c, err.Error())
		}
		h.logger.Error("reply delivery failed", slog.String("ticket_id", ticket.ID), slog.String("error", err.Error()))
		return response.InternalError(c, "failed to send reply")
	}

	result := ReplyResult{Delivery: delivery}
	message := &models.Message{
		TicketID:   ticket.ID,
		SenderType: models.SenderSupport,
		Content:    req.Text,
	}
	if err := h.messages.Append(ctx, message); err != nil {
		h.logger.Error("reply sent but not logged",
			slog.String("ticket_id", ticket.ID),
			slog.String("message_id", delivery.MessageID),
			slog.String("error", err.Error()),
		)
		return response.Success(c, result)
	}

	result.Message = message
	result.MessageLogged = true
	h.notify(ticket.ID, message)
	return response.Success(c, result)
}

// AddNote handles POST /api/tickets/:id/notes
func (h *TicketHandler) AddNote(c echo.Context) error {
	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return response.BadRequest(c, "content is required")
	}

	ctx, cancel := h.ioContext(c)
	defer cancel()

	message := &models.Message{
		TicketID:   c.Param("id"),
		SenderType: models.SenderInternal,
		Content:    req.Content,
	}
	if err := h.messages.Append(ctx, message); err != nil {
		if apperrors.IsUnknownTicket(err) {
			return response.NotFound(c, "ticket not found")
		}
		return response.InternalError(c, "failed to add note")
	}

	h.notify(message.TicketID, message)
	return response.Created(c, message)
}

func (h *TicketHandler) notify(ticketID string, message *models.Message) {
	if h.notifier != nil {
		h.notifier.NotifyNewMessage(ticketID, message)
	}
}

// ReplyHTML renders plain reply text as a single HTML paragraph
func ReplyHTML(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br />") + "</p>"
}

func ticketLookupError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return response.NotFound(c, "ticket not found")
	}
	return response.InternalError(c, "failed to load ticket")
}
