/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ssiautomations/website/log"
)

// ContentTypeAppJSON represents MIME media type for JSON.
const ContentTypeAppJSON = "application/json"

// MessageResponse is a body of success responses that only carry a human-readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponseData wraps Error into {"error": {...}}.
type ErrorResponseData struct {
	Err *Error `json:"error"`
}

func (e *ErrorResponseData) Error() string {
	if e.Err == nil {
		return "HTTP error"
	}
	return fmt.Sprintf("HTTP error %s/%s: %s", e.Err.Domain, e.Err.Code, e.Err.Message)
}

// marshalJSON does not escape HTML so messages keep "<", ">" and "&" as is.
func marshalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// RespondJSON sends data as JSON with 200 status code.
func RespondJSON(rw http.ResponseWriter, respData interface{}, logger log.FieldLogger) {
	RespondCodeAndJSON(rw, http.StatusOK, respData, logger)
}

// RespondMessage sends {"message": msg} with the status code.
func RespondMessage(rw http.ResponseWriter, statusCode int, msg string, logger log.FieldLogger) {
	RespondCodeAndJSON(rw, statusCode, MessageResponse{Message: msg}, logger)
}

// RespondCodeAndJSON sends data as JSON with the status code.
// Content-Type is set to application/json unless the handler has already set it.
func RespondCodeAndJSON(rw http.ResponseWriter, statusCode int, respData interface{}, logger log.FieldLogger) {
	if respData == nil {
		rw.WriteHeader(statusCode)
		return
	}

	body, err := marshalJSON(respData)
	if err != nil {
		if logger != nil {
			logger.Error("error while marshaling response body", log.Error(err))
		}
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	if rw.Header().Get("Content-Type") == "" {
		rw.Header().Set("Content-Type", ContentTypeAppJSON)
	}
	rw.WriteHeader(statusCode)
	if _, err = rw.Write(body); err != nil && logger != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

// RespondError writes the error wrapped into {"error": ...} with the status code.
// Client errors are logged at warn level, server errors at error level.
func RespondError(rw http.ResponseWriter, httpStatusCode int, err *Error, logger log.FieldLogger) {
	logErrorResponse(httpStatusCode, err, logger)
	incResponseErrors(err.Domain, err.Code)
	RespondCodeAndJSON(rw, httpStatusCode, ErrorResponseData{err}, logger)
}

// RespondInternalError sends 500 with the internal error of the domain.
func RespondInternalError(rw http.ResponseWriter, domain string, logger log.FieldLogger) {
	RespondError(rw, http.StatusInternalServerError, NewInternalError(domain), logger)
}

// RespondTooManyRequests sends 429 and sets Retry-After to retryAfter rounded up to whole seconds.
// An empty message falls back to ErrMessageTooManyRequests.
func RespondTooManyRequests(
	rw http.ResponseWriter, domain, message string, retryAfter time.Duration, logger log.FieldLogger,
) {
	if message == "" {
		message = ErrMessageTooManyRequests
	}
	if retryAfter > 0 {
		rw.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	RespondError(rw, http.StatusTooManyRequests, NewError(domain, ErrCodeTooManyRequests, message), logger)
}

// RespondMalformedRequestError converts reqErr into Error and sends it.
func RespondMalformedRequestError(rw http.ResponseWriter, domain string, reqErr *MalformedRequestError, logger log.FieldLogger) {
	err := NewError(domain, ErrorCodeFromHTTPStatus(reqErr.HTTPStatusCode), reqErr.Message)
	RespondError(rw, reqErr.HTTPStatusCode, err, logger)
}

// RespondMalformedRequestOrInternalError sends a malformed request error if err is (or wraps) *MalformedRequestError
// and an internal error otherwise.
func RespondMalformedRequestOrInternalError(rw http.ResponseWriter, domain string, err error, logger log.FieldLogger) {
	var reqErr *MalformedRequestError
	if errors.As(err, &reqErr) {
		RespondMalformedRequestError(rw, domain, reqErr, logger)
		return
	}
	if logger != nil {
		logger.Error("error while decoding request", log.Error(err))
	}
	RespondInternalError(rw, domain, logger)
}

func logErrorResponse(httpStatusCode int, err *Error, logger log.FieldLogger) {
	if logger == nil {
		return
	}
	fields := []log.Field{
		log.Int("status", httpStatusCode),
		log.String("error_code", err.Code),
		log.String("error_message", err.Message),
	}
	if len(err.Context) != 0 {
		ctxLines := make([]string, 0, len(err.Context))
		for k, v := range err.Context {
			ctxLines = append(ctxLines, fmt.Sprintf("%s: %v", k, v))
		}
		fields = append(fields, log.Strings("error_context", ctxLines))
	}
	if httpStatusCode >= http.StatusInternalServerError {
		logger.Error("error in response", fields...)
		return
	}
	logger.Warn("error in response", fields...)
}
