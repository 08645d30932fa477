package smtp

import (
	"encoding/base64"
	"io"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
)

// ParseEmail reads a raw RFC 5322 message into an inbound.Email. envelopeFrom
// is used when the message carries no usable From header. Attachment content
// is re-encoded as base64 so both transports hand the pipeline the same shape.
func ParseEmail(r io.Reader, envelopeFrom string) (*inbound.Email, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	email := &inbound.Email{
		TextBody: env.Text,
		HTMLBody: env.HTML,
	}

	for _, part := range env.Attachments {
		email.Attachments = append(email.Attachments, toAttachment(part))
	}
	// Inline parts only count when they carry a file name (pasted images).
	for _, part := range env.Inlines {
		if part.FileName != "" {
			email.Attachments = append(email.Attachments, toAttachment(part))
		}
	}

	return inbound.NewEmail(email, headerSender(env), envelopeFrom, env.GetHeader("Subject"))
}

func toAttachment(part *enmime.Part) inbound.Attachment {
	return inbound.Attachment{
		Name:          part.FileName,
		ContentType:   part.ContentType,
		Content:       base64.StdEncoding.EncodeToString(part.Content),
		ContentLength: int64(len(part.Content)),
	}
}

// headerSender returns the first From address, or the raw header when it
// cannot be parsed as an address list
func headerSender(env *enmime.Envelope) string {
	addrs, err := env.AddressList("From")
	if err == nil && len(addrs) > 0 {
		return addrs[0].Address
	}
	raw := strings.TrimSpace(env.GetHeader("From"))
	if addr, err := mail.ParseAddress(raw); err == nil {
		return addr.Address
	}
	return raw
}
