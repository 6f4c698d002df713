package api

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a client error. Network and Timeout carry status 0 since no
// HTTP response was received.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindServer
	KindHTTP
	KindMalformedSession
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindHTTP:
		return "http"
	case KindMalformedSession:
		return "malformed_session"
	default:
		return "unexpected"
	}
}

// Fixed user-facing messages.
const (
	msgNetwork      = "Unable to reach MealLens. Please check your connection and try again."
	msgTimeout      = "The request timed out. Please try again."
	msgAuthRequired = "Your session has expired. Please sign in again."
	msgForbidden    = "You don't have permission to perform this action."
)

// Error is the single error type surfaced by the client. Message is safe to
// show to users; Raw preserves the backend response body when there was one.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Raw     []byte
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func IsTimeout(err error) bool        { return IsKind(err, KindTimeout) }
func IsNetwork(err error) bool        { return IsKind(err, KindNetwork) }
func IsAuthentication(err error) bool { return IsKind(err, KindAuthentication) }

// IsTransient reports whether the failure is worth retrying.
func IsTransient(err error) bool {
	return IsNetwork(err) || IsTimeout(err)
}

// notFoundMessage returns an endpoint-aware message for a 404.
func notFoundMessage(path string) string {
	switch {
	case strings.Contains(path, "/enterprise"):
		return "The requested organization could not be found."
	case strings.Contains(path, "/settings/history"):
		return "No settings history is available yet."
	case strings.Contains(path, "/time_restrictions"):
		return "No meal time restrictions have been configured."
	default:
		return "The requested resource could not be found."
	}
}

// serverErrorMessage returns an endpoint-aware message for a 5xx.
func serverErrorMessage(path string) string {
	switch {
	case strings.Contains(path, "/detection_history"):
		return "We couldn't load your detection history right now. Please try again shortly."
	case strings.Contains(path, "/meal_plan"):
		return "We couldn't process your meal plan right now. Please try again shortly."
	case strings.Contains(path, "/feedback"):
		return "We couldn't submit your feedback right now. Please try again shortly."
	default:
		return "Something went wrong on our side. Please try again shortly."
	}
}

func genericHTTPMessage(status int, statusText string) string {
	return fmt.Sprintf("HTTP %d: %s", status, statusText)
}
