package generation

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	// KindValidation is a required field missing before any network call.
	KindValidation ErrorKind = "validation"
	// KindTransport is a network failure or a non-2xx response without a parseable body.
	KindTransport ErrorKind = "transport"
	// KindService is a well-formed response reporting an application-level failure.
	KindService ErrorKind = "service"
	// KindMalformedResponse is a response body that is not structured data at all.
	KindMalformedResponse ErrorKind = "malformed_response"
	// KindTimeout is the polling ceiling being reached before a terminal status.
	KindTimeout ErrorKind = "timeout"
)

// BodyPrefixLen is how much of a raw response body is surfaced in errors.
const BodyPrefixLen = 200

// Static errors for orchestrator operations.
var (
	// ErrNoCredential is returned by a CredentialStore holding no credential.
	ErrNoCredential = errors.New("generation: no stored credential")
	// ErrSuperseded is returned when a response arrives for an abandoned attempt.
	ErrSuperseded = errors.New("generation: attempt superseded")
	// ErrNotPolling is returned by CheckNow when no task is being polled.
	ErrNotPolling = errors.New("generation: no task is being polled")
	// ErrInvalidTransition is returned when a task status change is not allowed.
	ErrInvalidTransition = errors.New("generation: invalid task status transition")
)

// Error is a user-visible generation failure.
type Error struct {
	Kind ErrorKind
	// Message is surfaced to the user verbatim.
	Message string
	// Body is a truncated raw response body, when one is available.
	Body string
	Err  error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithBody attaches a truncated raw response body to the error.
func (e *Error) WithBody(body []byte) *Error {
	e.Body = BodyPrefix(body)
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// BodyPrefix returns at most BodyPrefixLen bytes of body as a string. The
// cut never splits a UTF-8 sequence.
func BodyPrefix(body []byte) string {
	if len(body) <= BodyPrefixLen {
		return string(body)
	}
	cut := BodyPrefixLen
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut])
}

func validationError(message string) *Error {
	return NewError(KindValidation, message, nil)
}

// asError converts any backend error into an *Error. Unclassified errors are
// treated as transport failures.
func asError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return NewError(KindTransport, "request to generation service failed", err)
}
