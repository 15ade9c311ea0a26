/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthCheckHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      HealthCheck
		cancelReq  bool
		wantStatus int
		wantComps  map[string]bool
	}{
		{
			name:       "no components",
			wantStatus: http.StatusOK,
			wantComps:  map[string]bool{},
		},
		{
			name: "all healthy",
			check: func(ctx context.Context) (HealthCheckResult, error) {
				return HealthCheckResult{"database": HealthCheckStatusOK}, nil
			},
			wantStatus: http.StatusOK,
			wantComps:  map[string]bool{"database": true},
		},
		{
			name: "database down",
			check: func(ctx context.Context) (HealthCheckResult, error) {
				return HealthCheckResult{"database": HealthCheckStatusFail, "mailer": HealthCheckStatusOK}, nil
			},
			wantStatus: http.StatusServiceUnavailable,
			wantComps:  map[string]bool{"database": false, "mailer": true},
		},
		{
			name: "check error",
			check: func(ctx context.Context) (HealthCheckResult, error) {
				return nil, errors.New("unexpected")
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "client gone",
			check: func(ctx context.Context) (HealthCheckResult, error) {
				return nil, ctx.Err()
			},
			cancelReq:  true,
			wantStatus: StatusClientClosedRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.cancelReq {
				ctx, cancel := context.WithCancel(req.Context())
				cancel()
				req = req.WithContext(ctx)
			}
			rec := httptest.NewRecorder()
			NewHealthCheckHandler(tt.check).ServeHTTP(rec, req)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantComps != nil {
				var resp healthCheckResponseData
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.Equal(t, tt.wantComps, resp.Components)
			}
		})
	}
}
