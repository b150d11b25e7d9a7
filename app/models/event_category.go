package models

import "time"

// EventCategory is one race distance/bracket inside an event. MaxSlots <= 0
// means unlimited capacity.
type EventCategory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    uint      `gorm:"not null;index" json:"event_id"`
	Name       string    `gorm:"type:varchar(150);not null" json:"name"`
	DistanceKM float64   `gorm:"type:decimal(6,2);default:0" json:"distance_km"`
	PriceCents int64     `gorm:"not null;default:0" json:"price_cents"`
	MaxSlots   int       `gorm:"not null;default:0" json:"max_slots"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasCapacityFor reports whether another registration fits given the current
// count of non-cancelled registrations.
func (c *EventCategory) HasCapacityFor(current int64) bool {
	if c.MaxSlots <= 0 {
		return true
	}
	return current < int64(c.MaxSlots)
}
