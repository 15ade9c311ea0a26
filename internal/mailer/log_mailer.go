/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package mailer

import (
	"context"

	"github.com/ssiautomations/website/log"
)

// LogMailer writes messages to the log instead of sending them. Used in local development.
type LogMailer struct {
	logger log.FieldLogger
}

// NewLogMailer creates a new LogMailer.
func NewLogMailer(logger log.FieldLogger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	m.logger.Info("email not sent, log mail provider is used",
		log.String("from", msg.From),
		log.Strings("to", msg.To),
		log.String("reply_to", msg.ReplyTo),
		log.String("subject", msg.Subject),
		log.String("text", msg.Text),
	)
	return nil
}
