package clerk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event types this service reconciles. Anything else is acknowledged as a
// no-op so the provider stops redelivering.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrMissingUserID    = errors.New("webhook payload missing user id")
)

type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

type EventData struct {
	ID             string         `json:"id"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
}

// Event is one webhook delivery after verification. It is never persisted;
// the reconciler maps it onto at most one profile mutation.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`

	// transport metadata, not part of the signed payload
	DeliveryID string `json:"-"`
}

// ParseEvent decodes a verified payload. Unknown event types parse fine;
// only structural problems are errors.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(ev.Data.ID) == "" {
		return Event{}, ErrMissingUserID
	}
	return ev, nil
}

// PrimaryEmail returns the first email address on the payload, or "".
func (e Event) PrimaryEmail() string {
	for _, addr := range e.Data.EmailAddresses {
		if addr.EmailAddress != "" {
			return addr.EmailAddress
		}
	}
	return ""
}

// FullName joins first and last name; either may be empty.
func (e Event) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(e.Data.FirstName) + " " + strings.TrimSpace(e.Data.LastName))
}
