package outbound

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
)

// SMTPProvider delivers through an SMTP relay. STARTTLS is used whenever the
// relay offers it; PLAIN auth is used when a username is configured.
type SMTPProvider struct {
	addr     string
	username string
	password string
	tls      *tls.Config
}

// NewSMTPProvider creates a provider relaying through addr (host:port)
func NewSMTPProvider(addr, username, password string) *SMTPProvider {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &SMTPProvider{
		addr:     addr,
		username: username,
		password: password,
		tls:      &tls.Config{ServerName: host},
	}
}

// Name returns the provider name
func (p *SMTPProvider) Name() string {
	return "smtp"
}

// Deliver builds a multipart message and submits it to the relay
func (p *SMTPProvider) Deliver(ctx context.Context, msg *Message) (*Result, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(msg.From))

	builder := enmime.Builder().
		From("", msg.From).
		To("", msg.To).
		Subject(msg.Subject).
		Header("Message-ID", messageID).
		HTML([]byte(msg.HTMLBody))
	if msg.TextBody != "" {
		builder = builder.Text([]byte(msg.TextBody))
	}

	part, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	if err := p.submit(ctx, msg.From, msg.To, &buf); err != nil {
		return nil, err
	}

	return &Result{
		Provider:    p.Name(),
		MessageID:   messageID,
		To:          msg.To,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

func (p *SMTPProvider) submit(ctx context.Context, from, to string, body *bytes.Buffer) error {
	client, err := smtp.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP relay: %w", err)
	}
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		timeout := time.Until(deadline)
		client.CommandTimeout = timeout
		client.SubmissionTimeout = timeout
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(p.tls); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if p.username != "" {
		if err := client.Auth(sasl.NewPlainClient("", p.username, p.password)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := client.SendMail(from, []string{to}, body); err != nil {
		return fmt.Errorf("SMTP relay rejected message: %w", err)
	}

	return client.Quit()
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return address[i+1:]
	}
	return "localhost"
}
