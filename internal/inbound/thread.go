package inbound

import (
	"fmt"
	"regexp"
)

// threadTag matches the reply marker that outbound mail embeds in subjects.
// It is not anchored and only the first occurrence counts.
var threadTag = regexp.MustCompile(`\[Ticket#([a-zA-Z0-9-]+)\]`)

// CorrelateThread extracts the ticket id from a subject. ok is false when the
// subject carries no tag and the email should open a new ticket. The id is
// returned verbatim; whether the ticket exists is checked on write.
func CorrelateThread(subject string) (string, bool) {
	m := threadTag.FindStringSubmatch(subject)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ThreadSubject builds the subject of a staff reply so the customer's answer
// correlates back to the ticket
func ThreadSubject(title, ticketID string) string {
	return fmt.Sprintf("Re: %s [Ticket#%s]", title, ticketID)
}
