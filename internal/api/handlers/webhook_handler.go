package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/logger"
)

// Error bodies of the inbound webhook. The provider only inspects the status
// code, the texts are shown in its activity log.
const (
	webhookServerError    = "Serverfehler"
	webhookMissingSender  = "From-Adresse fehlt"
	webhookReplyFailed    = "Message konnte nicht gespeichert werden"
	webhookTicketFailed   = "Ticket konnte nicht erstellt werden"
	webhookFirstMsgFailed = "Nachricht konnte nicht gespeichert werden"
)

// EmailProcessor runs the inbound pipeline for one email
type EmailProcessor interface {
	Process(ctx context.Context, email *inbound.Email) (*inbound.Result, error)
}

// WebhookHandler receives inbound emails posted by the mail provider
type WebhookHandler struct {
	processor EmailProcessor
	logger    *slog.Logger
	security  *logger.SecurityLogger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor EmailProcessor, log *slog.Logger, sec *logger.SecurityLogger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		processor: processor,
		logger:    log,
		security:  sec,
	}
}

// InboundEmail handles POST /webhooks/inbound-email.
//
// Malformed payloads are answered 200 so the provider does not redeliver
// them; only failed primary writes return 500.
func (h *WebhookHandler) InboundEmail(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("inbound webhook panicked", slog.Any("panic", r))
			err = webhookError(c, http.StatusOK, webhookServerError)
		}
	}()

	var payload inbound.WebhookPayload
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		if h.security != nil {
			h.security.InvalidWebhookPayload(c.RealIP(), c.Request().URL.Path, err.Error())
		}
		h.logger.Warn("inbound webhook body rejected", slog.String("error", err.Error()))
		return webhookError(c, http.StatusOK, webhookServerError)
	}

	email, err := payload.Email()
	if err != nil {
		if errors.Is(err, inbound.ErrMissingSender) {
			h.logger.Warn("inbound email without sender", slog.String("subject", payload.Subject))
			return webhookError(c, http.StatusOK, webhookMissingSender)
		}
		h.logger.Error("inbound payload conversion failed", slog.String("error", err.Error()))
		return webhookError(c, http.StatusOK, webhookServerError)
	}

	// The pipeline is not idempotent, so a client hanging up must not abort
	// it halfway through.
	ctx := context.WithoutCancel(c.Request().Context())

	result, err := h.processor.Process(ctx, email)
	if err != nil {
		return h.processingError(c, err)
	}

	body := map[string]interface{}{
		"ok":        true,
		"mode":      result.Mode,
		"ticket_id": result.TicketID,
	}
	if result.Mode == inbound.ModeNewTicket {
		body["customer_id"] = result.CustomerID
	}
	return c.JSON(http.StatusOK, body)
}

func (h *WebhookHandler) processingError(c echo.Context, err error) error {
	var stageErr *inbound.StageError
	if !errors.As(err, &stageErr) {
		h.logger.Error("inbound processing failed", slog.String("error", err.Error()))
		return webhookError(c, http.StatusOK, webhookServerError)
	}

	h.logger.Error("inbound primary write failed",
		slog.String("stage", string(stageErr.Stage)),
		slog.String("ticket_id", stageErr.TicketID),
		slog.String("error", stageErr.Err.Error()),
	)

	switch stageErr.Stage {
	case inbound.StageReplyMessage:
		return webhookError(c, http.StatusInternalServerError, webhookReplyFailed)
	case inbound.StageTicket:
		return webhookError(c, http.StatusInternalServerError, webhookTicketFailed)
	case inbound.StageFirstMessage:
		return webhookError(c, http.StatusInternalServerError, webhookFirstMsgFailed)
	default:
		return webhookError(c, http.StatusInternalServerError, webhookServerError)
	}
}

func webhookError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
