package models

import "time"

// WebhookEvent stores every inbound gateway notification with deduplication
// metadata for idempotent processing. Rows are append-only; processing state
// lives in Processed/ProcessingError.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	DedupeKey       string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"dedupe_key"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	GatewayChargeID string     `gorm:"type:varchar(64);index" json:"gateway_charge_id"`
	DeliveryID      string     `gorm:"type:varchar(100)" json:"delivery_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	TokenValid      bool       `gorm:"default:false;index" json:"token_valid"`
	Processed       bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
