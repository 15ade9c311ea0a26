/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"code.cloudfoundry.org/bytefmt"
)

// RequestBodyTooLargeError is returned by a body wrapped with SetRequestMaxBodySize
// once more than MaxSizeBytes have been read.
type RequestBodyTooLargeError struct {
	MaxSizeBytes uint64
	Err          error
}

func (e *RequestBodyTooLargeError) Error() string {
	return e.Err.Error()
}

func (e *RequestBodyTooLargeError) Unwrap() error {
	return e.Err
}

type limitedBody struct {
	io.ReadCloser
	limit uint64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return n, &RequestBodyTooLargeError{MaxSizeBytes: b.limit, Err: err}
	}
	return n, err
}

// SetRequestMaxBodySize limits the number of bytes that may be read from the request body.
func SetRequestMaxBodySize(w http.ResponseWriter, r *http.Request, maxSizeBytes uint64) {
	r.Body = &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, int64(maxSizeBytes)), limit: maxSizeBytes}
}

// MalformedRequestError describes a request body the client has to fix.
// Message is safe to show to the submitter.
type MalformedRequestError struct {
	HTTPStatusCode int
	Message        string
}

func (e *MalformedRequestError) Error() string {
	return e.Message
}

func malformed(status int, format string, args ...interface{}) *MalformedRequestError {
	return &MalformedRequestError{HTTPStatusCode: status, Message: fmt.Sprintf(format, args...)}
}

// NewTooLargeMalformedRequestError creates the 413 error for a body over maxSizeBytes.
func NewTooLargeMalformedRequestError(maxSizeBytes uint64) *MalformedRequestError {
	return malformed(http.StatusRequestEntityTooLarge,
		"Request body must not be larger than %s.", bytefmt.ByteSize(maxSizeBytes))
}

// DecodeOpts controls DecodeRequestJSONWithOpts.
type DecodeOpts struct {
	DisallowUnknownFields bool
}

// DecodeRequestJSON decodes a single JSON object from the request body into dst, ignoring unknown fields.
func DecodeRequestJSON(r *http.Request, dst interface{}) error {
	return DecodeRequestJSONWithOpts(r, dst, DecodeOpts{})
}

// DecodeRequestJSONWithOpts decodes a single JSON object from the request body into dst.
// Client mistakes are reported as *MalformedRequestError.
// Form posts made with fetch may omit Content-Type, so only a present non-JSON type is rejected.
func DecodeRequestJSONWithOpts(r *http.Request, dst interface{}, opts DecodeOpts) error {
	if err := checkJSONContentType(r.Header.Get("Content-Type")); err != nil {
		return err
	}

	decoder := json.NewDecoder(r.Body)
	if opts.DisallowUnknownFields {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dst); err != nil {
		return classifyDecodeError(err)
	}
	if decoder.More() {
		return malformed(http.StatusBadRequest, "Request body must only contain a single JSON object.")
	}
	return nil
}

func checkJSONContentType(header string) error {
	if header == "" {
		return nil
	}
	contentType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return malformed(http.StatusUnsupportedMediaType, "Content-Type header is malformed: %s.", err)
	}
	if contentType != ContentTypeAppJSON {
		return malformed(http.StatusUnsupportedMediaType, "Content-Type %q is not supported.", contentType)
	}
	return nil
}

const unknownFieldErrPrefix = "json: unknown field "

func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var tooLargeErr *RequestBodyTooLargeError

	switch {
	case errors.As(err, &tooLargeErr):
		return NewTooLargeMalformedRequestError(tooLargeErr.MaxSizeBytes)
	case errors.Is(err, io.EOF):
		return malformed(http.StatusBadRequest, "Request body must not be empty.")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return malformed(http.StatusBadRequest, "Request body contains badly-formed JSON.")
	case errors.As(err, &syntaxErr):
		return malformed(http.StatusBadRequest,
			"Request body contains badly-formed JSON (at position %d).", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return malformed(http.StatusBadRequest,
				"Request body contains an invalid value for the %q field (at position %d).", typeErr.Field, typeErr.Offset)
		}
		return malformed(http.StatusBadRequest,
			"Request body contains an invalid value of type %q for the field of type %s.", typeErr.Value, typeErr.Type)
	case strings.HasPrefix(err.Error(), unknownFieldErrPrefix):
		return malformed(http.StatusBadRequest,
			"Request body contains unknown field %s.", strings.TrimPrefix(err.Error(), unknownFieldErrPrefix))
	}
	return err
}
