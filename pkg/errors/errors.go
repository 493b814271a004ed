// Package errors carries the typed error codes the API maps onto HTTP
// responses. Services return *Error; everything else is treated as internal.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodePaymentDeclined    Code = "PAYMENT_DECLINED"
	CodeCheckoutIncomplete Code = "CHECKOUT_INCOMPLETE"
)

// Metadata describes how a code is surfaced to clients.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ClientMessage lets the error's own message replace PublicMessage.
	ClientMessage bool
}

const (
	retryable = 1 << iota
	details
	clientMsg
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&details != 0,
		ClientMessage:  flags&clientMsg != 0,
	}
}

var catalog = map[Code]Metadata{
	CodeValidation:      meta(http.StatusBadRequest, "validation failed", details|clientMsg),
	CodeUnauthorized:    meta(http.StatusUnauthorized, "authentication required", clientMsg),
	CodeForbidden:       meta(http.StatusForbidden, "access denied", clientMsg),
	CodeNotFound:        meta(http.StatusNotFound, "resource not found", clientMsg),
	CodeConflict:        meta(http.StatusConflict, "conflict detected", clientMsg),
	CodeStateConflict:   meta(http.StatusUnprocessableEntity, "state transition disallowed", details|clientMsg),
	CodeIdempotency:     meta(http.StatusConflict, "idempotency key reused", details|clientMsg),
	CodeRateLimit:       meta(http.StatusTooManyRequests, "rate limit exceeded", clientMsg),
	CodeInternal:        meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:      meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|details),
	CodePaymentDeclined: meta(http.StatusBadRequest, "payment declined", details|clientMsg),
	// order exists but later steps did not finish; details carry the saga id
	CodeCheckoutIncomplete: meta(http.StatusInternalServerError, "checkout did not complete", details|clientMsg),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := catalog[code]; ok {
		return m
	}
	return catalog[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is / errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(d any) *Error {
	if e != nil {
		e.details = d
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return string(e.code) + ": " + e.message + ": " + e.cause.Error()
	default:
		return string(e.code) + ": " + e.message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// HTTPStatus maps any error onto a status code; untyped errors are 500.
func HTTPStatus(err error) int {
	if typed := As(err); typed != nil {
		return MetadataFor(typed.code).HTTPStatus
	}
	return http.StatusInternalServerError
}

// Retryable reports whether a caller may retry the failed operation.
// Untyped errors are assumed transient.
func Retryable(err error) bool {
	if typed := As(err); typed != nil {
		return MetadataFor(typed.code).Retryable
	}
	return err != nil
}

// PublicMessage is the text safe to show a client for err.
func PublicMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return catalog[CodeInternal].PublicMessage
	}
	m := MetadataFor(typed.code)
	if m.ClientMessage && typed.message != "" {
		return typed.message
	}
	return m.PublicMessage
}
