/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package newsletter

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/ssiautomations/website/internal/mailer"
	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/service"
)

// WelcomeSender sends welcome emails to new subscribers. It's run by service.PeriodicWorker.
type WelcomeSender struct {
	store     Store
	mailer    mailer.Mailer
	from      string
	subject   string
	batchSize int
	logger    log.FieldLogger
	now       func() time.Time
}

var _ service.Worker = (*WelcomeSender)(nil)

// NewWelcomeSender creates a new WelcomeSender.
func NewWelcomeSender(store Store, m mailer.Mailer, from string, cfg WelcomeConfig, logger log.FieldLogger) *WelcomeSender {
	return &WelcomeSender{
		store:     store,
		mailer:    m,
		from:      from,
		subject:   cfg.Subject,
		batchSize: cfg.BatchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sends one batch. A failed send is logged and the subscriber stays unwelcomed until the next run.
func (w *WelcomeSender) Run(ctx context.Context) error {
	subscribers, err := w.store.ListUnwelcomed(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unwelcomed subscribers: %w", err)
	}
	sent := 0
	for i := range subscribers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sub := &subscribers[i]
		if err = w.mailer.Send(ctx, w.welcomeMessage(sub.Email)); err != nil {
			w.logger.Warn("welcome email not sent", log.String("email", sub.Email), log.Error(err))
			continue
		}
		if err = w.store.MarkWelcomed(ctx, sub.ID, w.now().UTC()); err != nil {
			w.logger.Error("failed to mark subscriber welcomed", log.String("email", sub.Email), log.Error(err))
			continue
		}
		sent++
	}
	if len(subscribers) > 0 {
		w.logger.Info("welcome emails sent", log.Int("sent", sent), log.Int("pending", len(subscribers)-sent))
	}
	return nil
}

func (w *WelcomeSender) welcomeMessage(email string) mailer.Message {
	const text = "Thanks for subscribing to the SSI Automations newsletter!\n\n" +
		"You'll get our latest articles on automation and AI for small businesses.\n"
	return mailer.Message{
		From:    w.from,
		To:      []string{email},
		Subject: w.subject,
		Text:    text,
		HTML: "<p>Thanks for subscribing to the SSI Automations newsletter!</p>" +
			"<p>You'll get our latest articles on automation and AI for small businesses.</p>" +
			"<p style=\"color:#888\">Sent to " + html.EscapeString(email) + "</p>",
	}
}
