/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package contact

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/internal/mailer"
	"github.com/ssiautomations/website/ratelimit"
	"github.com/ssiautomations/website/restapi"
	"github.com/ssiautomations/website/testutil"
)

type stubMailer struct {
	err  error
	sent []mailer.Message
}

func (m *stubMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newTestRouter(t *testing.T, m mailer.Mailer, limit int) chi.Router {
	t.Helper()
	limiter, err := ratelimit.New(&ratelimit.Config{Window: time.Minute, MaxTrackedIdentities: 100})
	require.NoError(t, err)
	router := chi.NewRouter()
	NewHandler(m, "SSI Automations <no-reply@ssiautomations.com>", "sales@ssiautomations.com", restapi.DefaultDomain).
		Mount(router, limiter, limit)
	return router
}

func postContact(t *testing.T, router http.Handler, ip string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/contact", body)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validSubmission() Submission {
	return Submission{Name: "Jane <Doe>", Email: "jane@example.com", Company: "Acme & Co", Message: "Hello\nWorld"}
}

func TestConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(""), config.DataTypeYAML, cfg))
	require.Equal(t, DefaultLimit, cfg.Limit)

	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString("contact: {limit: 0}"), config.DataTypeYAML, NewConfig())
	require.EqualError(t, err, "contact.limit: must be positive")
}

func TestHandler_Submit(t *testing.T) {
	m := &stubMailer{}
	router := newTestRouter(t, m, 100)

	rec := postContact(t, router, "203.0.113.1", validSubmission())
	testutil.RequireMessageInRecorder(t, rec, http.StatusOK, MsgSent)

	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	require.Equal(t, Subject, msg.Subject)
	require.Equal(t, []string{"sales@ssiautomations.com"}, msg.To)
	require.Equal(t, "jane@example.com", msg.ReplyTo)
	require.Equal(t, "Name: Jane <Doe>\nEmail: jane@example.com\nCompany: Acme & Co\nMessage: Hello\nWorld", msg.Text)
	require.Contains(t, msg.HTML, "<p><strong>Name:</strong> Jane &lt;Doe&gt;</p>")
	require.Contains(t, msg.HTML, "<p><strong>Company:</strong> Acme &amp; Co</p>")
	require.Contains(t, msg.HTML, "<p><strong>Message:</strong> Hello<br>World</p>")
}

func TestHandler_Submit_Validation(t *testing.T) {
	m := &stubMailer{}
	router := newTestRouter(t, m, 100)

	tests := []struct {
		name    string
		modify  func(s *Submission)
		wantMsg string
	}{
		{"name required", func(s *Submission) { s.Name = " " }, "Name is required"},
		{"name too long", func(s *Submission) { s.Name = strings.Repeat("a", MaxNameLen+1) }, "Name must be at most 200 characters"},
		{"email required", func(s *Submission) { s.Email = "" }, "Email is required"},
		{"email invalid", func(s *Submission) { s.Email = "jane" }, "Please enter a valid email address"},
		{"company too long", func(s *Submission) { s.Company = strings.Repeat("a", MaxCompanyLen+1) }, "Company must be at most 200 characters"},
		{"message required", func(s *Submission) { s.Message = "" }, "Message is required"},
		{"message too long", func(s *Submission) { s.Message = strings.Repeat("a", MaxMessageLen+1) }, "Message must be at most 5000 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission()
			tt.modify(&sub)
			rec := postContact(t, router, "203.0.113.1", sub)
			msg := testutil.RequireErrorInRecorder(t, rec, http.StatusBadRequest, restapi.DefaultDomain, restapi.ErrCodeBadRequest)
			require.Equal(t, tt.wantMsg, msg)
		})
	}
	require.Empty(t, m.sent)

	sub := validSubmission()
	sub.Company = ""
	testutil.RequireMessageInRecorder(t, postContact(t, router, "203.0.113.1", sub), http.StatusOK, MsgSent)
}

func TestHandler_Submit_MailFailure(t *testing.T) {
	router := newTestRouter(t, &stubMailer{err: errors.New("smtp: 421 service not available")}, 100)
	rec := postContact(t, router, "203.0.113.1", validSubmission())
	msg := testutil.RequireErrorInRecorder(t, rec, http.StatusInternalServerError, restapi.DefaultDomain, restapi.ErrCodeInternal)
	require.Equal(t, MsgSendFailed, msg)
}

func TestHandler_Submit_AttemptLimit(t *testing.T) {
	m := &stubMailer{}
	router := newTestRouter(t, m, DefaultLimit)

	for i := 0; i < DefaultLimit-1; i++ {
		testutil.RequireMessageInRecorder(t, postContact(t, router, "203.0.113.1", validSubmission()), http.StatusOK, MsgSent)
	}
	rec := postContact(t, router, "203.0.113.1", validSubmission())
	msg := testutil.RequireErrorInRecorder(t, rec, http.StatusTooManyRequests, restapi.DefaultDomain, restapi.ErrCodeTooManyRequests)
	require.Equal(t, MsgTooManyAttempts, msg)
	require.Len(t, m.sent, DefaultLimit-1)

	testutil.RequireMessageInRecorder(t, postContact(t, router, "198.51.100.2", validSubmission()), http.StatusOK, MsgSent)
}
