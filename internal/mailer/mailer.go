/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package mailer delivers site emails (contact form notifications, newsletter welcomes)
// over SMTP or an HTTP email API.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ssiautomations/website/log"
)

// ErrNoRecipients is returned for messages without a To address.
var ErrNoRecipients = errors.New("message has no recipients")

var addressRegExp = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// IsValidAddress reports whether s is a bare e-mail address accepted by the site forms.
func IsValidAddress(s string) bool {
	return addressRegExp.MatchString(s)
}

// Message is a plain text email with an optional HTML alternative.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

func (m *Message) validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if m.From == "" {
		return fmt.Errorf("message has no sender")
	}
	for _, addr := range append([]string{m.From, m.ReplyTo}, m.To...) {
		if strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("address %q contains line breaks", addr)
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("subject contains line breaks")
	}
	return nil
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New creates the Mailer selected by cfg.Provider. httpClient is used by the API provider only.
func New(cfg *Config, httpClient *http.Client, logger log.FieldLogger) (Mailer, error) {
	switch cfg.Provider {
	case ProviderSMTP:
		return NewSMTPMailer(cfg.SMTP), nil
	case ProviderAPI:
		return NewAPIMailer(cfg.API, httpClient, logger), nil
	case ProviderLog:
		return NewLogMailer(logger), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}
