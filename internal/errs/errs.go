package errs

import (
	"errors"
	"fmt"
)

// Domain sentinel errors, mapped to client-facing messages by Public.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrFlightNotFound       = errors.New("flight not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrCapabilityRevoked    = errors.New("capability revoked")
	ErrUpstream             = errors.New("upstream unavailable")
	ErrNoDepartureProcedure = errors.New("no departure procedure")
)

// ValidationError reports a malformed or out-of-range field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Public returns the message that may be sent to a client for err.
// Upstream and unknown failures collapse into a generic message.
func Public(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrNotAuthorized):
		return "Not authorized"
	case errors.Is(err, ErrFlightNotFound):
		return "Flight not found"
	case errors.Is(err, ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, ErrNoDepartureProcedure):
		return err.Error()
	default:
		return "Internal error"
	}
}

// IsBenign reports errors that are expected races or client mistakes rather than faults.
func IsBenign(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrFlightNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrNoDepartureProcedure)
}
