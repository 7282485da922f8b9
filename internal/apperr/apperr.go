// Package apperr classifies the expected, caller-facing failures of the
// booking core. Handlers translate kinds into HTTP statuses; anything that is
// not an *Error is an unexpected failure and surfaces as a 500.
package apperr

import "errors"

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindBusinessRule
	KindUnauthorized
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// BusinessRule marks a request that is well-formed but violates a booking
// rule (working hours, horizon, availability, cancellation cutoff, ...).
// These are expected outcomes, never defects, and are never retried.
func BusinessRule(msg string) error {
	return &Error{Kind: KindBusinessRule, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// KindOf returns the classification of err, or 0 for unexpected errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
