/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

const contentTypeAppJSON = "application/json"

type tHelper interface {
	Helper()
}

type wrappedErrorRespData struct {
	Error struct {
		Domain  string `json:"domain"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewJSONRequest builds a server-side request with body marshaled as JSON.
// A string body is sent as is, which allows testing malformed payloads.
func NewJSONRequest(t require.TestingT, method, target string, body interface{}) *http.Request {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", contentTypeAppJSON)
	return req
}

// RequireErrorInRecorder asserts that the recorder holds a wrapped error ({"error": {...}})
// with the status, domain and code. It returns the error message.
func RequireErrorInRecorder(
	t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErrDomain, wantErrCode string,
) string {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code, "body: %s", resp.Body.String())
	require.Equal(t, contentTypeAppJSON, resp.Header().Get("Content-Type"))
	var errResp wrappedErrorRespData
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, wantErrDomain, errResp.Error.Domain)
	require.Equal(t, wantErrCode, errResp.Error.Code)
	return errResp.Error.Message
}

// RequireJSONInRecorder asserts the status and decodes the JSON body into dest.
func RequireJSONInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, dest interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code, "body: %s", resp.Body.String())
	require.Equal(t, contentTypeAppJSON, resp.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), dest))
}

// RequireMessageInRecorder asserts that the body is {"message": want, ...}.
func RequireMessageInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, want string) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	var body struct {
		Message string `json:"message"`
	}
	RequireJSONInRecorder(t, resp, wantHTTPCode, &body)
	require.Equal(t, want, body.Message)
}
