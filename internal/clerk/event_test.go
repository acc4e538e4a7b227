package clerk

import (
	"errors"
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		want    string // expected event type
	}{
		{
			name: "user created",
			body: `{"type":"user.created","data":{"id":"user_123","email_addresses":[{"email_address":"a@b.com"}],"first_name":"Ada","last_name":"Lovelace"}}`,
			want: EventUserCreated,
		},
		{
			name: "unknown type parses fine",
			body: `{"type":"session.created","data":{"id":"user_123"}}`,
			want: "session.created",
		},
		{
			name:    "not json",
			body:    `{"type":`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "missing user id",
			body:    `{"type":"user.created","data":{}}`,
			wantErr: ErrMissingUserID,
		},
		{
			name:    "blank user id",
			body:    `{"type":"user.created","data":{"id":"   "}}`,
			wantErr: ErrMissingUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Type != tt.want {
				t.Errorf("expected type %q, got %q", tt.want, ev.Type)
			}
		})
	}
}

func TestEvent_PrimaryEmail(t *testing.T) {
	ev := Event{Data: EventData{EmailAddresses: []EmailAddress{
		{EmailAddress: ""},
		{EmailAddress: "second@example.com"},
	}}}
	if got := ev.PrimaryEmail(); got != "second@example.com" {
		t.Errorf("expected first non-empty address, got %q", got)
	}

	empty := Event{}
	if got := empty.PrimaryEmail(); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestEvent_FullName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Ada", "Lovelace", "Ada Lovelace"},
		{"Ada", "", "Ada"},
		{"", "Lovelace", "Lovelace"},
		{"", "", ""},
		{"  Ada  ", " Lovelace ", "Ada Lovelace"},
	}
	for _, tt := range tests {
		ev := Event{Data: EventData{FirstName: tt.first, LastName: tt.last}}
		if got := ev.FullName(); got != tt.want {
			t.Errorf("FullName(%q, %q) = %q, want %q", tt.first, tt.last, got, tt.want)
		}
	}
}
