package inbound

import "strings"

// AttachmentOnlyContent is stored as the message body when an email carries
// no usable text at all
const AttachmentOnlyContent = "(Kein Textinhalt – Nachricht enthält nur Anhänge)"

// ResolveContent picks the message body: the first candidate that is not
// blank after trimming, in the order text, HTML, stripped reply. The result
// is trimmed and never empty.
func ResolveContent(text, html, strippedReply string) string {
	for _, candidate := range []string{text, html, strippedReply} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return AttachmentOnlyContent
}
