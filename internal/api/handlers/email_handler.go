package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/webrana-helpdesk-backend/internal/errors"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/outbound"
)

// EmailSender delivers outbound replies
type EmailSender interface {
	Send(ctx context.Context, email outbound.Email) (*outbound.Result, error)
}

// EmailHandler handles POST /api/send-email
type EmailHandler struct {
	sender EmailSender
	logger *slog.Logger
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(sender EmailSender, log *slog.Logger) *EmailHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EmailHandler{sender: sender, logger: log}
}

// Send hands the email to the configured provider without queueing it
func (h *EmailHandler) Send(c echo.Context) error {
	var req outbound.Email
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.To) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "to is required"})
	}

	result, err := h.sender.Send(c.Request().Context(), req)
	if err != nil {
		if apperrors.IsInvalidInput(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.logger.Error("send-email failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}
