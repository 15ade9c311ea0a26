/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"net/http"
	"strings"
	"unicode"
)

// DefaultDomain is the error domain used by all website handlers.
const DefaultDomain = "Website"

// Error is the body of an error response.
type Error struct {
	Domain  string                 `json:"domain"`
	Code    string                 `json:"code"`
	Message string                 `json:"message,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
	Debug   map[string]interface{} `json:"debug,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "badRequest"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeNotFound           = "notFound"
	ErrCodeMethodNotAllowed   = "methodNotAllowed"
	ErrCodeConflict           = "conflict"
	ErrCodeTooManyRequests    = "tooManyRequests"
	ErrCodeInternal           = "internalError"
	ErrCodeServiceUnavailable = "serviceUnavailable"
)

// Error messages.
const (
	ErrMessageInternal           = "Internal error."
	ErrMessageNotFound           = "Not found."
	ErrMessageMethodNotAllowed   = "Method not allowed."
	ErrMessageTooManyRequests    = "Too many attempts. Please try again in a minute."
	ErrMessageServiceUnavailable = "Service temporarily unavailable."
)

// NewError creates a new Error.
func NewError(domain, code, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message}
}

// NewInternalError creates an internal error for the domain.
func NewInternalError(domain string) *Error {
	return NewError(domain, ErrCodeInternal, ErrMessageInternal)
}

// AddContext adds value to the error context. Context is returned to the client.
func (e *Error) AddContext(field string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[field] = value
	return e
}

// AddDebug adds value to the debug info.
func (e *Error) AddDebug(field string, value interface{}) *Error {
	if e.Debug == nil {
		e.Debug = make(map[string]interface{})
	}
	e.Debug[field] = value
	return e
}

// ErrorCodeFromHTTPStatus converts an HTTP status into a camel-cased error code ("Too Many Requests" -> "tooManyRequests").
func ErrorCodeFromHTTPStatus(httpCode int) string {
	if httpCode == http.StatusInternalServerError {
		return ErrCodeInternal
	}
	var sb strings.Builder
	upperNext := false
	for _, r := range http.StatusText(httpCode) {
		switch {
		case unicode.IsSpace(r) || r == '-':
			upperNext = true
		case upperNext:
			sb.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}
