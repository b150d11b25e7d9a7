package models

import "time"

// EventKit is optional merchandise (shirt, chip, medal bundle) sold with a
// registration.
type EventKit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    uint      `gorm:"not null;index" json:"event_id"`
	Name       string    `gorm:"type:varchar(150);not null" json:"name"`
	PriceCents int64     `gorm:"not null;default:0" json:"price_cents"`
	Stock      int       `gorm:"not null;default:0" json:"stock"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
