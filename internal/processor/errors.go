package processor

import "errors"

// ErrorType classifies a reconciliation failure for the HTTP response.
// Callers branch on the type, never on message text.
type ErrorType string

const (
	ErrorTypeVerification ErrorType = "WEBHOOK_VERIFICATION"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeDatabase     ErrorType = "DATABASE"
)

// Error pairs an underlying failure with its classification.
type Error struct {
	Type ErrorType
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(err error) *Error {
	return &Error{Type: ErrorTypeValidation, Err: err}
}

func NewDatabaseError(err error) *Error {
	return &Error{Type: ErrorTypeDatabase, Err: err}
}

// TypeOf extracts the classification from err. Anything unclassified is
// treated as a storage failure: retrying is safe, swallowing is not.
func TypeOf(err error) ErrorType {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeDatabase
}
