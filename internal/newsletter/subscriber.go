/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package newsletter

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusActive is the status of a confirmed subscriber.
const StatusActive = "active"

// Subscriber is a newsletter subscriber. Email is stored lowercased.
type Subscriber struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	SubscribedAt time.Time  `gorm:"not null" json:"subscribed_at"`
	Status       string     `gorm:"not null;default:'active'" json:"status"`
	Welcomed     bool       `gorm:"not null;default:false;index" json:"welcomed"`
	WelcomedAt   *time.Time `json:"welcomed_at,omitempty"`
}

// BeforeCreate assigns a new ID.
func (s *Subscriber) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName implements gorm's schema.Tabler.
func (Subscriber) TableName() string {
	return "newsletter_subscribers"
}
