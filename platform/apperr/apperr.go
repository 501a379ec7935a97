// Package apperr is the error taxonomy shared by services and handlers.
// Services return *Error values; httpkit.HandleError turns the Kind into a
// status code and the Message into the response body. Anything that is not an
// *Error is an internal failure.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the HTTP layer and for logs.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	// KindGone is an approval whose deadline passed.
	KindGone
	// KindInvalidScope is evidence the pricing engine cannot map to a price.
	KindInvalidScope
	// KindUpstream is a failing external collaborator (vision, messaging).
	KindUpstream
	KindInternal
)

var kinds = map[Kind]struct {
	name   string
	status int
}{
	KindValidation:   {"validation", http.StatusBadRequest},
	KindUnauthorized: {"unauthorized", http.StatusUnauthorized},
	KindForbidden:    {"forbidden", http.StatusForbidden},
	KindNotFound:     {"not_found", http.StatusNotFound},
	KindConflict:     {"conflict", http.StatusConflict},
	KindGone:         {"gone", http.StatusGone},
	KindInvalidScope: {"invalid_scope", http.StatusUnprocessableEntity},
	KindUpstream:     {"upstream", http.StatusBadGateway},
	KindInternal:     {"internal", http.StatusInternalServerError},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Error carries a Kind, a client-safe Message and optional response Details.
type Error struct {
	Kind    Kind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the Kind to a response status; unknown kinds are 500.
func (e *Error) HTTPStatus() int {
	if info, ok := kinds[e.Kind]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// WithDetails attaches response details, such as per-field validation failures.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

func newErr(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error   { return newErr(KindValidation, message, nil) }
func Unauthorized(message string) *Error { return newErr(KindUnauthorized, message, nil) }
func Forbidden(message string) *Error    { return newErr(KindForbidden, message, nil) }
func NotFound(message string) *Error     { return newErr(KindNotFound, message, nil) }

// Conflict names the precondition that did not hold, e.g. "parts request is not pending".
func Conflict(message string) *Error { return newErr(KindConflict, message, nil) }

func Gone(message string) *Error         { return newErr(KindGone, message, nil) }
func InvalidScope(message string) *Error { return newErr(KindInvalidScope, message, nil) }
func Internal(message string) *Error     { return newErr(KindInternal, message, nil) }

// Upstream wraps a collaborator failure. Only message reaches the client.
func Upstream(message string, err error) *Error { return newErr(KindUpstream, message, err) }

// GetKind returns the Kind of the first *Error in err's chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && GetKind(err) == kind
}
