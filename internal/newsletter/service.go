/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package newsletter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ssiautomations/website/internal/mailer"
)

// Validation errors.
var (
	ErrEmailRequired = errors.New("email is required")
	ErrInvalidEmail  = errors.New("invalid email address")
)

// Storage operations reported in OpError.
const (
	OpLookup = "lookup"
	OpInsert = "insert"
)

// OpError is a storage failure during subscription.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s subscriber: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Service subscribes emails to the newsletter.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new Service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// NormalizeEmail trims and validates the address and returns it lowercased.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	if !mailer.IsValidAddress(email) {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}

// Subscribe adds an active subscriber that has not been welcomed yet.
func (s *Service) Subscribe(ctx context.Context, email string) (*Subscriber, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if _, err = s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrAlreadySubscribed
	} else if !errors.Is(err, ErrSubscriberNotFound) {
		return nil, &OpError{Op: OpLookup, Err: err}
	}

	subscriber := &Subscriber{
		Email:        email,
		SubscribedAt: s.now().UTC(),
		Status:       StatusActive,
	}
	if err = s.store.Create(ctx, subscriber); err != nil {
		if errors.Is(err, ErrAlreadySubscribed) {
			return nil, err
		}
		return nil, &OpError{Op: OpInsert, Err: err}
	}
	return subscriber, nil
}
