/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type subscribeRequest struct {
	Email string `json:"email"`
}

func TestDecodeRequestJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		strict      bool
		wantStatus  int
		wantMsg     string
		wantEmail   string
	}{
		{name: "ok", contentType: "application/json; charset=utf-8", body: `{"email":"a@b.co"}`, wantEmail: "a@b.co"},
		{name: "no content type", body: `{"email":"a@b.co","extra":1}`, wantEmail: "a@b.co"},
		{name: "empty", contentType: "application/json", body: ``,
			wantStatus: http.StatusBadRequest, wantMsg: "Request body must not be empty."},
		{name: "truncated", contentType: "application/json", body: `{"email":`,
			wantStatus: http.StatusBadRequest, wantMsg: "Request body contains badly-formed JSON."},
		{name: "wrong type", contentType: "application/json", body: `{"email":42}`,
			wantStatus: http.StatusBadRequest},
		{name: "two objects", contentType: "application/json", body: `{"email":"a@b.co"}{}`,
			wantStatus: http.StatusBadRequest, wantMsg: "Request body must only contain a single JSON object."},
		{name: "form", contentType: "application/x-www-form-urlencoded", body: `email=a`,
			wantStatus: http.StatusUnsupportedMediaType},
		{name: "unknown field strict", contentType: "application/json", body: `{"email":"a@b.co","x":1}`, strict: true,
			wantStatus: http.StatusBadRequest, wantMsg: `Request body contains unknown field "x".`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/newsletter", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			var dst subscribeRequest
			err := DecodeRequestJSONWithOpts(req, &dst, DecodeOpts{DisallowUnknownFields: tt.strict})
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				require.Equal(t, tt.wantEmail, dst.Email)
				return
			}
			var reqErr *MalformedRequestError
			require.True(t, errors.As(err, &reqErr), "unexpected error %v", err)
			require.Equal(t, tt.wantStatus, reqErr.HTTPStatusCode)
			if tt.wantMsg != "" {
				require.Equal(t, tt.wantMsg, reqErr.Message)
			}
		})
	}
}

func TestDecodeRequestJSONTooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"email":"`+strings.Repeat("a", 100)+`@b.co"}`))
	SetRequestMaxBodySize(rec, req, 32)

	var dst subscribeRequest
	err := DecodeRequestJSON(req, &dst)
	var reqErr *MalformedRequestError
	require.True(t, errors.As(err, &reqErr), "unexpected error %v", err)
	require.Equal(t, http.StatusRequestEntityTooLarge, reqErr.HTTPStatusCode)
}
