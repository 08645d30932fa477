// Package outbound delivers staff replies to customers through an email
// provider. Delivery is a single synchronous hand-off: there is no queue and
// no retry, and nothing here touches the ticket store.
package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	apperrors "github.com/welldanyogia/webrana-helpdesk-backend/internal/errors"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/validator"
)

var lineBreaks = strings.NewReplacer("<br/>", "\n", "<br />", "\n", "<br>", "\n", "</p>", "\n")

// Email is a reply as requested by the UI
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Message is what a Provider delivers
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Stream   string
}

// Result is the provider's acknowledgement of a delivered message
type Result struct {
	Provider    string    `json:"provider"`
	MessageID   string    `json:"message_id"`
	To          string    `json:"to"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Provider hands a message to an email delivery service
type Provider interface {
	Name() string
	Deliver(ctx context.Context, msg *Message) (*Result, error)
}

// Dispatcher sends replies from the configured support address
type Dispatcher struct {
	provider  Provider
	from      string
	stream    string
	html      *bluemonday.Policy
	text      *bluemonday.Policy
	ioTimeout time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. from and stream are fixed for every
// message sent through it.
func NewDispatcher(provider Provider, from, stream string, ioTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		provider:  provider,
		from:      from,
		stream:    stream,
		html:      bluemonday.UGCPolicy(),
		text:      bluemonday.StrictPolicy(),
		ioTimeout: ioTimeout,
		logger:    logger,
	}
}

// Send sanitizes the HTML body and delivers the email. Invalid recipients
// fail with ErrInvalidInput; provider failures are wrapped in
// ErrDeliveryFailed and returned as is, without retry.
func (d *Dispatcher) Send(ctx context.Context, email Email) (*Result, error) {
	to := strings.TrimSpace(email.To)
	if err := validator.ValidateEmail(to); err != nil {
		return nil, fmt.Errorf("recipient %q: %w: %v", to, apperrors.ErrInvalidInput, err)
	}

	html := d.html.Sanitize(email.HTML)
	msg := &Message{
		From:     d.from,
		To:       to,
		Subject:  email.Subject,
		HTMLBody: html,
		TextBody: strings.TrimSpace(d.text.Sanitize(lineBreaks.Replace(html))),
		Stream:   d.stream,
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.ioTimeout)
	defer cancel()

	result, err := d.provider.Deliver(sendCtx, msg)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("email delivery failed",
				slog.String("provider", d.provider.Name()),
				slog.String("subject", msg.Subject),
				slog.Any("error", err))
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDeliveryFailed, err)
	}

	if d.logger != nil {
		d.logger.Info("email delivered",
			slog.String("provider", d.provider.Name()),
			slog.String("message_id", result.MessageID),
			slog.String("subject", msg.Subject))
	}
	return result, nil
}
