/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package contact handles contact form submissions by emailing them to the site owner.
package contact

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/ssiautomations/website/config"
	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/internal/mailer"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/restapi"
)

// ActionSubmit names contact form submissions for attempt limiting.
const ActionSubmit = "contact"

// Response messages.
const (
	MsgSent            = "Email sent successfully"
	MsgSendFailed      = "Error sending email"
	MsgTooManyAttempts = "Too many attempts. Please try again in a minute."
)

// Field limits.
const (
	MaxNameLen    = 200
	MaxCompanyLen = 200
	MaxMessageLen = 5000
)

// Subject of the notification email.
const Subject = "New Contact Form Submission"

const cfgKeyLimit = "contact.limit"

// DefaultLimit is the default attempts quota within the rate limit window.
const DefaultLimit = 3

// Config represents a set of configuration parameters for the contact form.
type Config struct {
	Limit int

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config with the key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLimit, DefaultLimit)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Limit, err = dp.GetInt(cfgKeyLimit); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyLimit, fmt.Errorf("must be positive"))
	}
	return nil
}

// ValidationError describes an invalid field. Its text is shown to the user.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Submission is a contact form payload.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Message string `json:"message"`
}

// Validate trims the fields and checks required values and lengths.
func (s *Submission) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Company = strings.TrimSpace(s.Company)
	s.Message = strings.TrimSpace(s.Message)

	switch {
	case s.Name == "":
		return ValidationError("Name is required")
	case utf8.RuneCountInString(s.Name) > MaxNameLen:
		return ValidationError(fmt.Sprintf("Name must be at most %d characters", MaxNameLen))
	case s.Email == "":
		return ValidationError("Email is required")
	case !mailer.IsValidAddress(s.Email):
		return ValidationError("Please enter a valid email address")
	case utf8.RuneCountInString(s.Company) > MaxCompanyLen:
		return ValidationError(fmt.Sprintf("Company must be at most %d characters", MaxCompanyLen))
	case s.Message == "":
		return ValidationError("Message is required")
	case utf8.RuneCountInString(s.Message) > MaxMessageLen:
		return ValidationError(fmt.Sprintf("Message must be at most %d characters", MaxMessageLen))
	}
	return nil
}

// Handler serves the contact form endpoint.
type Handler struct {
	mailer    mailer.Mailer
	from      string
	recipient string
	errDomain string
}

// NewHandler creates a new Handler sending submissions from the address to the recipient.
func NewHandler(m mailer.Mailer, from, recipient, errDomain string) *Handler {
	return &Handler{mailer: m, from: from, recipient: recipient, errDomain: errDomain}
}

// Mount registers POST /contact guarded by the attempts checker.
func (h *Handler) Mount(r chi.Router, checker middleware.AttemptChecker, limit int) {
	r.With(middleware.AttemptLimit(checker, ActionSubmit, limit, h.errDomain,
		middleware.AttemptLimitOpts{Message: MsgTooManyAttempts})).Post("/contact", h.Submit)
}

// Submit handles a contact form submission.
func (h *Handler) Submit(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerOrDisabled(r.Context())

	var sub Submission
	if err := restapi.DecodeRequestJSON(r, &sub); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, h.errDomain, err, logger)
		return
	}
	if err := sub.Validate(); err != nil {
		restapi.RespondError(rw, http.StatusBadRequest,
			restapi.NewError(h.errDomain, restapi.ErrCodeBadRequest, err.Error()), logger)
		return
	}

	if err := h.mailer.Send(r.Context(), h.message(&sub)); err != nil {
		logger.Error("contact form email not sent", log.String("email", sub.Email), log.Error(err))
		restapi.RespondError(rw, http.StatusInternalServerError,
			restapi.NewError(h.errDomain, restapi.ErrCodeInternal, MsgSendFailed), logger)
		return
	}

	logger.Info("contact form submitted", log.String("email", sub.Email))
	restapi.RespondMessage(rw, http.StatusOK, MsgSent, logger)
}

func (h *Handler) message(sub *Submission) mailer.Message {
	text := fmt.Sprintf("Name: %s\nEmail: %s\nCompany: %s\nMessage: %s", sub.Name, sub.Email, sub.Company, sub.Message)
	var b strings.Builder
	for _, f := range []struct{ label, value string }{
		{"Name", sub.Name},
		{"Email", sub.Email},
		{"Company", sub.Company},
		{"Message", sub.Message},
	} {
		fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>\n", f.label,
			strings.ReplaceAll(html.EscapeString(f.value), "\n", "<br>"))
	}
	return mailer.Message{
		From:    h.from,
		To:      []string{h.recipient},
		ReplyTo: sub.Email,
		Subject: Subject,
		Text:    text,
		HTML:    b.String(),
	}
}
