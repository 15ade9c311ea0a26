/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ssiautomations/website/httpclient"
	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

type apiSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

type apiSendResponse struct {
	ID string `json:"id"`
}

// APIMailer sends messages through a transactional email HTTP API
// (POST {"from", "to", "reply_to", "subject", "text", "html"} with a bearer API key).
type APIMailer struct {
	url    string
	client *http.Client
	logger log.FieldLogger
}

// NewAPIMailer creates a new APIMailer. The client is expected to add authorization.
func NewAPIMailer(cfg APIConfig, client *http.Client, logger log.FieldLogger) *APIMailer {
	return &APIMailer{url: cfg.URL, client: client, logger: logger}
}

// Send implements Mailer. Every message carries an Idempotency-Key, so retries never duplicate it.
func (m *APIMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	ctx = httpclient.NewContextWithRequestType(ctx, "mail_send")
	ctx = httpclient.NewContextWithIdempotentHint(ctx, true)
	req, err := restapi.NewJSONRequest(ctx, http.MethodPost, m.url, apiSendRequest{
		From:    msg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("new send request: %w", err)
	}
	req.Header.Set("Idempotency-Key", uuid.NewString())

	logger := m.logger
	if ctxLogger := middleware.GetLoggerFromContext(ctx); ctxLogger != nil {
		logger = ctxLogger
	}
	var resp apiSendResponse
	if err = restapi.DoRequestAndUnmarshalJSON(m.client, req, &resp, logger); err != nil {
		return fmt.Errorf("send email via API: %w", err)
	}
	logger.Info("email sent", log.String("message_id", resp.ID), log.String("subject", msg.Subject))
	return nil
}
