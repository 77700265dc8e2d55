// Package apperr defines the error variants surfaced to callers of the client core.
// Every error carries a Kind so callers can branch without inspecting messages,
// and a Message that is safe to show to the user as-is.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags an Error with one of the client's error categories
type Kind string

const (
	// KindValidation is raised before any network call when input is rejected locally
	KindValidation Kind = "validation"
	// KindNotFoundLocal is raised when an operation needs a cached entity that is absent
	KindNotFoundLocal Kind = "not_found_local"
	// KindTransport covers network failures, timeouts and non-2xx responses
	KindTransport Kind = "transport"
	// KindSessionExpired is raised on 401 responses or when the held token has expired
	KindSessionExpired Kind = "session_expired"
)

// Error codes attached to transport and session errors
const (
	CodeTimeout      = "TIMEOUT"
	CodeCancelled    = "CANCELLED"
	CodeNetwork      = "NETWORK_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeBadResponse  = "BAD_RESPONSE"
)

// Error is the tagged error returned by the session manager, the task engine and the api client
type Error struct {
	Kind       Kind
	Message    string
	Code       string // server-supplied or client-assigned error code, may be empty
	StatusCode int    // HTTP status, 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a KindValidation error
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFoundLocal builds a KindNotFoundLocal error for the named entity
func NotFoundLocal(entity, id string) *Error {
	return &Error{Kind: KindNotFoundLocal, Message: fmt.Sprintf("%s %q is not loaded", entity, id)}
}

// Transport builds a KindTransport error
func Transport(message, code string, status int, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, Code: code, StatusCode: status, Err: cause}
}

// SessionExpired builds a KindSessionExpired error
func SessionExpired(message string) *Error {
	if message == "" {
		message = "Session expired. Please sign in again."
	}
	return &Error{Kind: KindSessionExpired, Message: message, Code: CodeTokenExpired}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing message for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFoundLocal checks if an error is a missing-from-cache error
func IsNotFoundLocal(err error) bool { return KindOf(err) == KindNotFoundLocal }

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool { return KindOf(err) == KindTransport }

// IsSessionExpired checks if an error means the session is gone
func IsSessionExpired(err error) bool { return KindOf(err) == KindSessionExpired }
