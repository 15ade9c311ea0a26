/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package mailer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/log/logtest"
)

func testMessage() Message {
	return Message{
		From:    "SSI Automations <no-reply@ssiautomations.com>",
		To:      []string{"sales@ssiautomations.com"},
		ReplyTo: "jane@example.com",
		Subject: "New Contact Form Submission",
		Text:    "Name: Jane\nMessage: Hello",
	}
}

func loadConfig(t *testing.T, data string) (*Config, error) {
	t.Helper()
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(data), config.DataTypeYAML, cfg)
	return cfg, err
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig(t, "")
		require.NoError(t, err)
		require.Equal(t, ProviderLog, cfg.Provider)
		require.Equal(t, "SSI Automations <no-reply@ssiautomations.com>", cfg.From)
	})

	t.Run("smtp", func(t *testing.T) {
		cfg, err := loadConfig(t, `
mail:
  provider: smtp
  recipient: sales@ssiautomations.com
  smtp:
    host: smtp.example.com
    port: 465
    tls: implicit
    username: user
    password: secret
    timeout: 5s
`)
		require.NoError(t, err)
		require.Equal(t, SMTPConfig{
			Host: "smtp.example.com", Port: 465, TLS: TLSModeImplicit,
			Username: "user", Password: "secret", Timeout: 5 * time.Second,
		}, cfg.SMTP)
	})

	t.Run("api", func(t *testing.T) {
		cfg, err := loadConfig(t, `
mail:
  provider: api
  recipient: sales@ssiautomations.com
  api:
    url: https://api.mail.example.com/emails
    apiKey: key
`)
		require.NoError(t, err)
		require.Equal(t, APIConfig{URL: "https://api.mail.example.com/emails", APIKey: "key"}, cfg.API)
	})

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "unknown provider",
			data:    "mail: {provider: pigeon}",
			wantErr: "mail.provider: unknown value \"pigeon\", should be one of [smtp api log]",
		},
		{
			name:    "recipient required",
			data:    "mail: {provider: smtp, smtp: {host: smtp.example.com}}",
			wantErr: "mail.recipient: cannot be empty",
		},
		{
			name:    "smtp host required",
			data:    "mail: {provider: smtp, recipient: a@b.co}",
			wantErr: "mail.smtp.host: cannot be empty",
		},
		{
			name:    "smtp port range",
			data:    "mail: {provider: smtp, recipient: a@b.co, smtp: {host: h, port: 70000}}",
			wantErr: "mail.smtp.port: must be in range [1..65535]",
		},
		{
			name:    "api key required",
			data:    "mail: {provider: api, recipient: a@b.co, api: {url: http://localhost}}",
			wantErr: "mail.api.apiKey: cannot be empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(t, tt.data)
			require.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestMessageValidate(t *testing.T) {
	msg := testMessage()
	require.NoError(t, msg.validate())

	msg.To = nil
	require.ErrorIs(t, msg.validate(), ErrNoRecipients)

	msg = testMessage()
	msg.ReplyTo = "jane@example.com\r\nBcc: all@example.com"
	require.Error(t, msg.validate())

	msg = testMessage()
	msg.Subject = "Hi\nBcc: all@example.com"
	require.Error(t, msg.validate())
}

func TestLogMailer(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	m := NewLogMailer(logRecorder)
	require.NoError(t, m.Send(context.Background(), testMessage()))

	entry, found := logRecorder.FindEntry("email not sent, log mail provider is used")
	require.True(t, found)
	require.Equal(t, log.LevelInfo, entry.Level)
	require.Equal(t, "New Contact Form Submission", entry.StringField("subject"))
	require.Equal(t, "jane@example.com", entry.StringField("reply_to"))

	require.ErrorIs(t, m.Send(context.Background(), Message{From: "a@b.co"}), ErrNoRecipients)
}

func TestAPIMailer(t *testing.T) {
	var gotReq apiSendRequest
	var gotIdempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		rw.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(rw, `{"id":"msg-1"}`)
	}))
	defer srv.Close()

	logRecorder := logtest.NewRecorder()
	m := NewAPIMailer(APIConfig{URL: srv.URL}, srv.Client(), logRecorder)
	msg := testMessage()
	msg.HTML = "<p>Hello</p>"
	require.NoError(t, m.Send(context.Background(), msg))

	require.Equal(t, apiSendRequest{
		From: msg.From, To: msg.To, ReplyTo: msg.ReplyTo, Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML,
	}, gotReq)
	require.NotEmpty(t, gotIdempotencyKey)
	entry, found := logRecorder.FindEntry("email sent")
	require.True(t, found)
	require.Equal(t, "msg-1", entry.StringField("message_id"))
}

func TestAPIMailer_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(rw, `{"message":"invalid from"}`)
	}))
	defer srv.Close()

	m := NewAPIMailer(APIConfig{URL: srv.URL}, srv.Client(), logtest.NewLogger())
	err := m.Send(context.Background(), testMessage())
	require.Error(t, err)
	require.Contains(t, err.Error(), "send email via API")
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	t.Run("plain text", func(t *testing.T) {
		raw, err := buildMessage(testMessage(), now)
		require.NoError(t, err)
		parsed, err := mail.ReadMessage(bytes.NewReader(raw))
		require.NoError(t, err)
		require.Equal(t, "jane@example.com", parsed.Header.Get("Reply-To"))
		require.Equal(t, "sales@ssiautomations.com", parsed.Header.Get("To"))
		require.Equal(t, now.Format(time.RFC1123Z), parsed.Header.Get("Date"))
		require.Equal(t, "text/plain; charset=utf-8", parsed.Header.Get("Content-Type"))
		subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
		require.NoError(t, err)
		require.Equal(t, "New Contact Form Submission", subject)
		body, err := io.ReadAll(parsed.Body)
		require.NoError(t, err)
		require.Equal(t, "Name: Jane\nMessage: Hello", string(body))
	})

	t.Run("with html", func(t *testing.T) {
		msg := testMessage()
		msg.HTML = "<p>Hello, Jane</p>"
		raw, err := buildMessage(msg, now)
		require.NoError(t, err)
		parsed, err := mail.ReadMessage(bytes.NewReader(raw))
		require.NoError(t, err)
		mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/alternative", mediaType)

		mr := multipart.NewReader(parsed.Body, params["boundary"])
		var contentTypes []string
		for {
			part, partErr := mr.NextPart()
			if partErr == io.EOF {
				break
			}
			require.NoError(t, partErr)
			contentTypes = append(contentTypes, part.Header.Get("Content-Type"))
		}
		require.Equal(t, []string{"text/plain; charset=utf-8", "text/html; charset=utf-8"}, contentTypes)
	})
}

// fakeSMTPServer accepts a single plain SMTP session and records the envelope and data.
type fakeSMTPServer struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt []string
	data string
	done chan struct{}
}

func newFakeSMTPServer(t *testing.T) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTPServer{ln: ln, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeSMTPServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	tp := textproto.NewConn(conn)
	reply := func(line string) { _ = tp.PrintfLine("%s", line) }

	reply("220 localhost ESMTP")
	for {
		line, readErr := tp.ReadLine()
		if readErr != nil {
			return
		}
		cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch cmd {
		case "EHLO", "HELO":
			reply("250 localhost")
		case "MAIL":
			s.mu.Lock()
			s.from = strings.TrimSuffix(strings.TrimPrefix(line, "MAIL FROM:<"), ">")
			s.mu.Unlock()
			reply("250 OK")
		case "RCPT":
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.TrimSuffix(strings.TrimPrefix(line, "RCPT TO:<"), ">"))
			s.mu.Unlock()
			reply("250 OK")
		case "DATA":
			reply("354 Start mail input")
			data, dataErr := io.ReadAll(tp.DotReader())
			if dataErr != nil {
				return
			}
			s.mu.Lock()
			s.data = string(data)
			s.mu.Unlock()
			reply("250 OK")
		case "QUIT":
			reply("221 Bye")
			return
		default:
			reply("502 Command not implemented")
		}
	}
}

func TestSMTPMailer(t *testing.T) {
	srv := newFakeSMTPServer(t)
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: srv.port(), TLS: TLSModeNone, Timeout: time.Second})
	m.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, testMessage()))

	select {
	case <-srv.done:
	case <-time.After(5 * time.Second):
		t.Fatal("smtp session was not finished")
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Equal(t, "no-reply@ssiautomations.com", srv.from)
	require.Equal(t, []string{"sales@ssiautomations.com"}, srv.rcpt)
	parsed, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(srv.data)))
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", parsed.Header.Get("Reply-To"))
}

func TestSMTPMailer_StartTLSNotSupported(t *testing.T) {
	srv := newFakeSMTPServer(t)
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: srv.port(), TLS: TLSModeStartTLS, Timeout: time.Second})
	err := m.Send(context.Background(), testMessage())
	require.EqualError(t, err, "smtp server does not support STARTTLS")
}

func TestSMTPMailer_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, TLS: TLSModeNone, Timeout: time.Second})
	err = m.Send(context.Background(), testMessage())
	require.Error(t, err)
	require.Contains(t, err.Error(), "dial smtp server 127.0.0.1:"+strconv.Itoa(port))
}

func TestNew(t *testing.T) {
	m, err := New(&Config{Provider: ProviderLog}, nil, logtest.NewLogger())
	require.NoError(t, err)
	require.IsType(t, &LogMailer{}, m)

	m, err = New(&Config{Provider: ProviderSMTP, SMTP: SMTPConfig{Host: "h", Port: 25}}, nil, logtest.NewLogger())
	require.NoError(t, err)
	require.IsType(t, &SMTPMailer{}, m)

	m, err = New(&Config{Provider: ProviderAPI, API: APIConfig{URL: "http://localhost"}}, http.DefaultClient, logtest.NewLogger())
	require.NoError(t, err)
	require.IsType(t, &APIMailer{}, m)

	_, err = New(&Config{Provider: "pigeon"}, nil, logtest.NewLogger())
	require.EqualError(t, err, "unknown mail provider \"pigeon\"")
}

func TestIsValidAddress(t *testing.T) {
	for _, addr := range []string{"jane@example.com", "j.doe+news@mail.example.co.uk", "A_B%c@x-y.io"} {
		require.True(t, IsValidAddress(addr), addr)
	}
	for _, addr := range []string{"", "jane", "jane@", "@example.com", "jane@example", "jane@example.c", "jane doe@example.com",
		"Jane <jane@example.com>", "jane@example.com\n"} {
		require.False(t, IsValidAddress(addr), addr)
	}
}
