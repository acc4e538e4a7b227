package security

import "errors"

var ErrInvalidUserID = errors.New("invalid user id")

const maxUserIDLength = 128

// ValidateUserID checks a provider user identifier before it reaches a
// query. Clerk ids look like "user_2abc..." but the exact shape is not
// documented as stable, so only length and charset are enforced.
func ValidateUserID(id string) error {
	if id == "" || len(id) > maxUserIDLength {
		return ErrInvalidUserID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return ErrInvalidUserID
		}
	}
	return nil
}
