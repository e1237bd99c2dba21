package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Session errors
	ErrInvalidSession = fmt.Errorf("invalid session token")

	// Query and mutation errors
	ErrNetwork            = fmt.Errorf("network error")
	ErrServer             = fmt.Errorf("server error")
	ErrNotFound           = fmt.Errorf("record not found")
	ErrStaleResponse      = fmt.Errorf("stale response discarded")
	ErrNotMounted         = fmt.Errorf("controller not mounted")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Local, pre-flight errors
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrValidation       = fmt.Errorf("validation failed")
	ErrUnknownFilter    = fmt.Errorf("unknown filter field")
	ErrUnknownAction    = fmt.Errorf("unknown action")
	ErrMissingArgument  = fmt.Errorf("missing required argument")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
)

// StatusError is a non-success HTTP response from the admin API.
//
// It matches [ErrServer] with [errors.Is], and [ErrNotFound] for 404s.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", ErrServer, e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", ErrServer, e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrServer || (target == ErrNotFound && e.Status == 404)
}

// IsLocal reports whether err was raised before any network round-trip.
func IsLocal(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrValidation)
}

// Retryable reports whether a user-initiated retry might succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
