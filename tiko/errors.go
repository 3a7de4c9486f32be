package tiko

import (
	"fmt"
	"strings"
)

// Messages the service embeds in GraphQL error entries. Classification
// happens once, at the wire boundary; nothing above it matches on
// message text.
const (
	rateLimitMessage    = "Limite de taux atteinte"
	invalidCredsMessage = "Invalid credentials"
	tokenExpiredMessage = "Authentication failed"
)

// TransportError covers network, HTTP, and decoding failures. Always
// retryable at the next cycle; never corrupts the retained snapshot.
type TransportError struct {
	Op  string
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("tiko %s: %v", e.Op, e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx reply, carried inside a TransportError.
// The body is retained for diagnostics.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// AuthenticationError means the credentials were rejected or the
// account carries no usable data. TokenExpired marks a previously
// accepted token the service no longer honors; the coordinator
// re-authenticates once on it instead of escalating.
type AuthenticationError struct {
	Msg          string
	TokenExpired bool
}

func (e AuthenticationError) Error() string {
	return "tiko authentication: " + e.Msg
}

// RateLimitError is surfaced distinctly from authentication failures
// so the operator knows to wait rather than re-enter credentials.
type RateLimitError struct {
	Msg string
}

func (e RateLimitError) Error() string {
	return "tiko rate limited: " + e.Msg
}

// ValidationError is an input rejected locally; nothing was sent to
// the service.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return "tiko validation: " + e.Msg
}

// StructuralError means the reply decoded but its shape does not match
// the contract. The observed shape is retained so a server-side
// contract change can be diagnosed.
type StructuralError struct {
	Op    string
	Shape string
}

func (e StructuralError) Error() string {
	return fmt.Sprintf("tiko %s: unexpected reply shape (%s)", e.Op, e.Shape)
}

// APIError is an application-level error entry that matched no known
// classification.
type APIError struct {
	Msg string
}

func (e APIError) Error() string {
	return "tiko api error: " + e.Msg
}

// classifyServiceError maps an embedded GraphQL error message to the
// taxonomy. authorized tells whether the failing call carried a token:
// the expired-token marker only means expiry on an authorized call.
func classifyServiceError(msg string, authorized bool) error {
	switch {
	case strings.Contains(msg, rateLimitMessage):
		return RateLimitError{Msg: msg}
	case strings.Contains(msg, invalidCredsMessage):
		return AuthenticationError{Msg: msg}
	case strings.Contains(msg, tokenExpiredMessage):
		return AuthenticationError{Msg: msg, TokenExpired: authorized}
	default:
		return APIError{Msg: msg}
	}
}
