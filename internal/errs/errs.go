// Package errs defines the error taxonomy shared by the provider client,
// the session registry and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of where it happened.
type Kind int

const (
	Unknown Kind = iota
	Configuration
	Auth
	Permission
	RateLimited
	ServiceUnavailable
	Protocol
	InvalidInput
	PayloadTooLarge
	NotFound
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	Configuration:      "configuration",
	Auth:               "auth",
	Permission:         "permission",
	RateLimited:        "rate_limited",
	ServiceUnavailable: "service_unavailable",
	Protocol:           "protocol",
	InvalidInput:       "invalid_input",
	PayloadTooLarge:    "payload_too_large",
	NotFound:           "not_found",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind plus the operation that produced it. Status holds the
// upstream HTTP status when the error came from a provider response, 0 otherwise.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error. The message is optional.
func E(kind Kind, op string, format string, args ...any) *Error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap attaches kind and op to an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Configuration, ServiceUnavailable:
		return http.StatusServiceUnavailable
	case Auth, Permission, Protocol:
		return http.StatusBadGateway
	case RateLimited:
		return http.StatusTooManyRequests
	case InvalidInput:
		return http.StatusBadRequest
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine readable error code used in JSON error bodies.
func Code(kind Kind) string {
	switch kind {
	case Configuration:
		return "CONFIGURATION_ERROR"
	case Auth:
		return "AUTH_ERROR"
	case Permission:
		return "PERMISSION_ERROR"
	case RateLimited:
		return "RATE_LIMITED"
	case ServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case Protocol:
		return "PROTOCOL_ERROR"
	case InvalidInput:
		return "INVALID_INPUT"
	case PayloadTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case NotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

// FromStatus classifies a non-2xx upstream status.
func FromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return Auth
	case status == http.StatusForbidden:
		return Permission
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status >= 500:
		return ServiceUnavailable
	default:
		return Protocol
	}
}
