/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ssiautomations/website/log"
)

// maxClientErrorBodySize bounds how much of an unexpected error body is kept in ClientError.
const maxClientErrorBodySize = 512

// NewJSONRequest creates a request with data marshaled as JSON body.
// A nil data produces a request without body.
func NewJSONRequest(ctx context.Context, method, url string, data interface{}) (*http.Request, error) {
	var body io.Reader
	if data != nil {
		buf, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", ContentTypeAppJSON)
	}
	req.Header.Set("Accept", ContentTypeAppJSON)
	return req, nil
}

// DoRequest sends req and logs its outcome at debug level.
func DoRequest(client *http.Client, req *http.Request, logger log.FieldLogger) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		logger.Error("http request failed",
			log.String("method", req.Method), log.String("uri", req.URL.Redacted()), log.Error(err))
		return nil, &ClientError{Method: req.Method, URL: req.URL, Message: "do request", Err: err}
	}
	logger.AtLevel(log.LevelDebug, func(logFn log.LogFunc) {
		logFn("http response received",
			log.String("method", req.Method), log.String("uri", req.URL.Redacted()), log.Int("status", resp.StatusCode))
	})
	return resp, nil
}

// DoRequestAndUnmarshalJSON sends req and decodes a 2xx JSON response into result (which may be nil).
// Any other status produces *ClientError carrying the message found in the error body.
func DoRequestAndUnmarshalJSON(client *http.Client, req *http.Request, result interface{}, logger log.FieldLogger) error {
	resp, err := DoRequest(client, req, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close response body", log.Error(closeErr))
		}
	}()

	cliErr := &ClientError{Method: req.Method, URL: req.URL, StatusCode: resp.StatusCode}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cliErr.wrap("read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cliErr.Message = errorMessageFromBody(resp.Header.Get("Content-Type"), body)
		return cliErr
	}

	if result == nil || len(body) == 0 {
		return nil
	}
	if err = json.Unmarshal(body, result); err != nil {
		logger.Error("failed to unmarshal response body", log.Error(err))
		return cliErr.wrap("unmarshal response body", err)
	}
	return nil
}

// errorMessageFromBody extracts a human-readable message from common JSON error shapes:
// {"msg": ...}, {"message": ...}, {"error_description": ...}, {"error": "..."} and {"error": {"message": ...}}.
func errorMessageFromBody(contentType string, body []byte) string {
	if strings.Contains(contentType, "json") {
		var payload map[string]json.RawMessage
		if json.Unmarshal(body, &payload) == nil {
			for _, key := range []string{"msg", "message", "error_description", "error"} {
				raw, ok := payload[key]
				if !ok {
					continue
				}
				var s string
				if json.Unmarshal(raw, &s) == nil && s != "" {
					return s
				}
				var nested Error
				if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
					return nested.Message
				}
			}
		}
	}
	if len(body) > maxClientErrorBodySize {
		body = body[:maxClientErrorBodySize]
	}
	if len(body) == 0 {
		return "unexpected status code"
	}
	return string(body)
}
