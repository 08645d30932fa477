// Package inbound turns received customer emails into tickets and messages.
// Both transports (the provider webhook and the optional SMTP listener)
// produce an Email and hand it to a Processor.
package inbound

import (
	"errors"
	"strings"
)

// DefaultSubject is used when a message arrives without a subject
const DefaultSubject = "Kein Betreff"

// ErrMissingSender is returned when neither From nor FromFull.Email is set
var ErrMissingSender = errors.New("sender address missing")

// Attachment is one file carried by an inbound email. Content is base64.
type Attachment struct {
	Name          string
	ContentType   string
	Content       string
	ContentLength int64
}

// Email is a transport-independent inbound message
type Email struct {
	From          string
	Subject       string
	TextBody      string
	HTMLBody      string
	StrippedReply string
	Attachments   []Attachment
}

// WebhookAddress is the structured sender of a webhook payload
type WebhookAddress struct {
	Email string `json:"Email"`
	Name  string `json:"Name"`
}

// WebhookAttachment is an attachment as delivered by the inbound webhook
type WebhookAttachment struct {
	Name          string `json:"Name"`
	Content       string `json:"Content"`
	ContentType   string `json:"ContentType"`
	ContentLength int64  `json:"ContentLength"`
}

// WebhookPayload is the JSON body posted by the inbound email provider.
// Fields the pipeline does not consume are ignored.
type WebhookPayload struct {
	From              string              `json:"From"`
	FromFull          *WebhookAddress     `json:"FromFull"`
	Subject           string              `json:"Subject"`
	TextBody          string              `json:"TextBody"`
	HtmlBody          string              `json:"HtmlBody"`
	StrippedTextReply string              `json:"StrippedTextReply"`
	Attachments       []WebhookAttachment `json:"Attachments"`
}

// Email converts the payload, applying the sender and subject fallbacks
func (p *WebhookPayload) Email() (*Email, error) {
	var fromFull string
	if p.FromFull != nil {
		fromFull = p.FromFull.Email
	}

	email := &Email{
		TextBody:      p.TextBody,
		HTMLBody:      p.HtmlBody,
		StrippedReply: p.StrippedTextReply,
	}
	for _, a := range p.Attachments {
		email.Attachments = append(email.Attachments, Attachment{
			Name:          a.Name,
			ContentType:   a.ContentType,
			Content:       a.Content,
			ContentLength: a.ContentLength,
		})
	}

	return NewEmail(email, p.From, fromFull, p.Subject)
}

// NewEmail fills sender and subject on e. The plain From wins over the
// structured address; an empty subject becomes DefaultSubject.
func NewEmail(e *Email, from, fromFull, subject string) (*Email, error) {
	sender := strings.TrimSpace(from)
	if sender == "" {
		sender = strings.TrimSpace(fromFull)
	}
	if sender == "" {
		return nil, ErrMissingSender
	}
	e.From = sender

	e.Subject = subject
	if e.Subject == "" {
		e.Subject = DefaultSubject
	}
	return e, nil
}
