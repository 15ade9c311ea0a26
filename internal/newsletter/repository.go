/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package newsletter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ssiautomations/website/internal/storage"
)

// ErrAlreadySubscribed is returned when the email is already in the subscriber list.
var ErrAlreadySubscribed = errors.New("email is already subscribed")

// ErrSubscriberNotFound is returned when there is no subscriber with the email.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// Store persists subscribers.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
	Create(ctx context.Context, s *Subscriber) error
	ListUnwelcomed(ctx context.Context, limit int) ([]Subscriber, error)
	MarkWelcomed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Repository is a gorm backed Store.
type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the subscribers table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Subscriber{})
}

// FindByEmail returns the subscriber or ErrSubscriberNotFound.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Subscriber, error) {
	var s Subscriber
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts the subscriber. A concurrent signup of the same email yields ErrAlreadySubscribed.
func (r *Repository) Create(ctx context.Context, s *Subscriber) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if storage.IsUniqueViolation(err) {
		return ErrAlreadySubscribed
	}
	return err
}

// ListUnwelcomed returns up to limit active subscribers without a welcome email, oldest first.
func (r *Repository) ListUnwelcomed(ctx context.Context, limit int) ([]Subscriber, error) {
	var subscribers []Subscriber
	err := r.db.WithContext(ctx).
		Where("status = ? AND welcomed = ?", StatusActive, false).
		Order("subscribed_at ASC").
		Limit(limit).
		Find(&subscribers).Error
	return subscribers, err
}

// MarkWelcomed records that the welcome email was sent.
func (r *Repository) MarkWelcomed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&Subscriber{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"welcomed": true, "welcomed_at": at}).Error
}
