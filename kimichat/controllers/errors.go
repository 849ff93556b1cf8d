package controllers

import (
	"errors"
	"fmt"
	"net/http"

	httputils "kimichat/kimichat/utils/http"
)

// Kind is the externally visible category of a relay failure.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindDemo                Kind = "demo"
	KindUnauthorized        Kind = "unauthorized"
	KindRateLimited         Kind = "rate_limited"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindInternal            Kind = "internal"
)

type RelayError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *RelayError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *RelayError) Unwrap() error { return e.Cause }

// Status is the HTTP status the client sees for this failure. The client
// surfaces errors by these codes, so they must not change.
func (e *RelayError) Status() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindDemo:
		return http.StatusServiceUnavailable
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindInsufficientCredits:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func invalidInput(msg string) *RelayError {
	return &RelayError{Kind: KindInvalidInput, Message: msg}
}

// AsRelayError returns err as a *RelayError, classifying anything else.
func AsRelayError(err error) *RelayError {
	var re *RelayError
	if errors.As(err, &re) {
		return re
	}
	return classifyUpstream(err)
}

// classifyUpstream keeps only the category of an upstream failure; provider
// message detail is never relayed.
func classifyUpstream(err error) *RelayError {
	var se *httputils.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized:
			return &RelayError{Kind: KindUnauthorized, Message: "Invalid API key", Cause: err}
		case http.StatusTooManyRequests:
			return &RelayError{Kind: KindRateLimited, Message: "Rate limit exceeded. Please try again later.", Cause: err}
		case http.StatusPaymentRequired:
			return &RelayError{Kind: KindInsufficientCredits, Message: "Insufficient credits. Please check your OpenRouter account.", Cause: err}
		}
	}
	return &RelayError{Kind: KindInternal, Message: "Internal server error", Cause: err}
}
