package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PostmarkProvider delivers through the Postmark HTTP API
type PostmarkProvider struct {
	apiURL string
	token  string
	client *http.Client
}

// NewPostmarkProvider creates a provider posting to apiURL
// (https://api.postmarkapp.com/email in production)
func NewPostmarkProvider(apiURL, serverToken string, client *http.Client) *PostmarkProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PostmarkProvider{apiURL: apiURL, token: serverToken, client: client}
}

type postmarkRequest struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody,omitempty"`
	MessageStream string `json:"MessageStream"`
}

type postmarkResponse struct {
	To          string    `json:"To"`
	SubmittedAt time.Time `json:"SubmittedAt"`
	MessageID   string    `json:"MessageID"`
	ErrorCode   int       `json:"ErrorCode"`
	Message     string    `json:"Message"`
}

// Name returns the provider name
func (p *PostmarkProvider) Name() string {
	return "postmark"
}

// Deliver sends msg. A non-2xx status or a non-zero ErrorCode is an error
// carrying Postmark's message.
func (p *PostmarkProvider) Deliver(ctx context.Context, msg *Message) (*Result, error) {
	body, err := json.Marshal(postmarkRequest{
		From:          msg.From,
		To:            msg.To,
		Subject:       msg.Subject,
		HtmlBody:      msg.HTMLBody,
		TextBody:      msg.TextBody,
		MessageStream: msg.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode postmark request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build postmark request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postmark request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read postmark response: %w", err)
	}

	var out postmarkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("postmark returned status %d with unreadable body", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || out.ErrorCode != 0 {
		return nil, fmt.Errorf("postmark error %d (status %d): %s", out.ErrorCode, resp.StatusCode, out.Message)
	}

	return &Result{
		Provider:    p.Name(),
		MessageID:   out.MessageID,
		To:          out.To,
		SubmittedAt: out.SubmittedAt,
	}, nil
}
