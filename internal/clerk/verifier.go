package clerk

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook transport headers (svix delivery convention used by Clerk).
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// TimestampTolerance bounds how far a delivery timestamp may drift from
// local time before the request is rejected as a replay.
const TimestampTolerance = 5 * time.Minute

const secretPrefix = "whsec_"

var (
	ErrMissingHeaders   = errors.New("missing svix headers")
	ErrBadTimestamp     = errors.New("invalid webhook timestamp")
	ErrTimestampTooOld  = errors.New("webhook timestamp too old")
	ErrTimestampTooNew  = errors.New("webhook timestamp too new")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Verifier checks that a webhook delivery was produced by the configured
// provider endpoint and is recent enough to not be a replay.
//
// In test mode only the cryptographic comparison is relaxed: headers must
// still be present and the timestamp window still applies.
type Verifier struct {
	secret   []byte
	testMode bool
	now      func() time.Time
}

func NewVerifier(secret string, testMode bool) (*Verifier, error) {
	v := &Verifier{testMode: testMode, now: time.Now}

	if secret == "" {
		if !testMode {
			return nil, errors.New("webhook secret is required outside test mode")
		}
		return v, nil
	}

	raw := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("webhook secret must be base64 after %q: %w", secretPrefix, err)
	}
	v.secret = key
	return v, nil
}

// Verify validates the three transport headers against the raw body bytes.
// The body must be the exact bytes received; re-serialized JSON breaks the
// signature.
func (v *Verifier) Verify(body []byte, deliveryID, timestamp, signature string) error {
	deliveryID = strings.TrimSpace(deliveryID)
	timestamp = strings.TrimSpace(timestamp)
	signature = strings.TrimSpace(signature)

	if deliveryID == "" || timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}

	diff := v.now().Sub(time.Unix(ts, 0))
	if diff > TimestampTolerance {
		return ErrTimestampTooOld
	}
	if -diff > TimestampTolerance {
		return ErrTimestampTooNew
	}

	if v.testMode {
		// accept any well-formed "v1,<token>" value without the HMAC proof
		for _, part := range strings.Fields(signature) {
			if strings.HasPrefix(part, "v1,") && len(part) > len("v1,") {
				return nil
			}
		}
		return ErrInvalidSignature
	}

	expected := v.sign(deliveryID, timestamp, body)
	for _, part := range strings.Fields(signature) {
		candidate, ok := strings.CutPrefix(part, "v1,")
		if !ok {
			continue
		}
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// sign computes the svix signature for a delivery: base64 of
// HMAC-SHA256(secret, "{id}.{timestamp}.{body}").
func (v *Verifier) sign(deliveryID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(deliveryID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
