/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"errors"
	"fmt"
	"net/url"
)

// ClientError is returned by DoRequest and DoRequestAndUnmarshalJSON.
type ClientError struct {
	Message    string
	Method     string
	URL        *url.URL
	StatusCode int
	Err        error
}

func (e *ClientError) wrap(message string, err error) *ClientError {
	e.Message = message
	e.Err = err
	return e
}

func (e *ClientError) Error() string {
	u := ""
	if e.URL != nil {
		u = e.URL.Redacted()
	}
	str := fmt.Sprintf("%s %s", e.Method, u)
	if e.StatusCode != 0 {
		str += fmt.Sprintf(" status %d", e.StatusCode)
	}
	str += ": " + e.Message
	if e.Err != nil {
		str += ": " + e.Err.Error()
	}
	return str
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsClientErrorStatus reports whether err is a *ClientError with a 4xx status.
func IsClientErrorStatus(err error) bool {
	var cliErr *ClientError
	return errors.As(err, &cliErr) && cliErr.StatusCode >= 400 && cliErr.StatusCode < 500
}

// StatusCodeOf returns the HTTP status carried by a *ClientError or 0.
func StatusCodeOf(err error) int {
	var cliErr *ClientError
	if errors.As(err, &cliErr) {
		return cliErr.StatusCode
	}
	return 0
}
