package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusClosed    = "closed"
)

type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrganizerID uint      `gorm:"not null;index" json:"organizer_id"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=3,max=200"`
	Slug        string    `gorm:"type:varchar(200);uniqueIndex" json:"slug" validate:"required,max=200"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"type:varchar(255)" json:"location" validate:"max=255"`
	EventDate   time.Time `gorm:"not null;index" json:"event_date"`
	Status      string    `gorm:"type:varchar(20);not null;default:'draft';index" json:"status" validate:"oneof=draft published closed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Event) Validate() error {
	return validator.New().Struct(e)
}

// IsOpenForRegistration reports whether new registrations are accepted.
func (e *Event) IsOpenForRegistration() bool {
	return e.Status == EventStatusPublished && time.Now().Before(e.EventDate)
}
