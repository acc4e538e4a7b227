package security

import (
	"strings"
	"testing"
	"time"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"clerk style", "user_2abcDEF123", true},
		{"with hyphen", "usr-123", true},
		{"digits only", "123456", true},
		{"empty", "", false},
		{"space", "user 123", false},
		{"sql chars", "user';drop", false},
		{"path traversal", "../etc", false},
		{"too long", strings.Repeat("a", 129), false},
		{"max length", strings.Repeat("a", 128), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.id)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.id, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be rejected", tt.id)
			}
		})
	}
}

func TestLimiterStore(t *testing.T) {
	// 1 token, no refill within the test window
	s := NewLimiterStore(0.001, 1, time.Minute)

	if !s.Allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if s.Allow("10.0.0.1") {
		t.Error("second request should be limited")
	}
	// other clients are independent
	if !s.Allow("10.0.0.2") {
		t.Error("different ip should have its own bucket")
	}
}
