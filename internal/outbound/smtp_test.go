package outbound

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayedMessage struct {
	from string
	to   []string
	data []byte
}

type relayBackend struct {
	mu       sync.Mutex
	messages []relayedMessage
	username string
	password string
}

func (b *relayBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &relaySession{backend: b}, nil
}

func (b *relayBackend) received() []relayedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]relayedMessage(nil), b.messages...)
}

type relaySession struct {
	backend *relayBackend
	authed  bool
	msg     relayedMessage
}

func (s *relaySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *relaySession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.authed = true
		return nil
	}), nil
}

func (s *relaySession) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.username != "" && !s.authed {
		return smtp.ErrAuthRequired
	}
	s.msg.from = from
	return nil
}

func (s *relaySession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.msg.to = append(s.msg.to, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.data = data
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.msg)
	s.backend.mu.Unlock()
	return nil
}

func (s *relaySession) Reset() {
	s.msg = relayedMessage{}
}

func (s *relaySession) Logout() error {
	return nil
}

func startRelay(t *testing.T, backend *relayBackend) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	return ln.Addr().String()
}

func TestSMTPProvider_Deliver(t *testing.T) {
	backend := &relayBackend{}
	addr := startRelay(t, backend)

	p := NewSMTPProvider(addr, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := p.Deliver(ctx, &Message{
		From:     "support@pixelmanufaktur.eu",
		To:       "kunde@example.com",
		Subject:  "Re: Drucker [Ticket#T1]",
		HTMLBody: "<p>Hallo<br />Welt</p>",
		TextBody: "Hallo\nWelt",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp", result.Provider)
	assert.Contains(t, result.MessageID, "@pixelmanufaktur.eu>")

	msgs := backend.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, "support@pixelmanufaktur.eu", msgs[0].from)
	assert.Equal(t, []string{"kunde@example.com"}, msgs[0].to)

	env, err := enmime.ReadEnvelope(bytesReader(msgs[0].data))
	require.NoError(t, err)
	assert.Equal(t, "Re: Drucker [Ticket#T1]", env.GetHeader("Subject"))
	assert.Equal(t, result.MessageID, env.GetHeader("Message-ID"))
	assert.Contains(t, env.HTML, "Hallo<br />Welt")
	assert.Contains(t, env.Text, "Hallo")
}

func TestSMTPProvider_Deliver_WithAuth(t *testing.T) {
	backend := &relayBackend{username: "relay", password: "secret"}
	addr := startRelay(t, backend)

	p := NewSMTPProvider(addr, "relay", "secret")
	_, err := p.Deliver(context.Background(), &Message{
		From:     "support@pixelmanufaktur.eu",
		To:       "kunde@example.com",
		Subject:  "Hallo",
		HTMLBody: "<p>Hallo</p>",
	})
	require.NoError(t, err)
	assert.Len(t, backend.received(), 1)
}

func TestSMTPProvider_Deliver_BadCredentials(t *testing.T) {
	backend := &relayBackend{username: "relay", password: "secret"}
	addr := startRelay(t, backend)

	p := NewSMTPProvider(addr, "relay", "wrong")
	_, err := p.Deliver(context.Background(), &Message{
		From:     "support@pixelmanufaktur.eu",
		To:       "kunde@example.com",
		Subject:  "Hallo",
		HTMLBody: "<p>Hallo</p>",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Empty(t, backend.received())
}

func TestSMTPProvider_Deliver_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := NewSMTPProvider(addr, "", "")
	_, err = p.Deliver(context.Background(), &Message{
		From:     "support@pixelmanufaktur.eu",
		To:       "kunde@example.com",
		Subject:  "Hallo",
		HTMLBody: "<p>Hallo</p>",
	})
	require.Error(t, err)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "pixelmanufaktur.eu", domainOf("support@pixelmanufaktur.eu"))
	assert.Equal(t, "localhost", domainOf("support"))
	assert.Equal(t, "localhost", domainOf("support@"))
}
