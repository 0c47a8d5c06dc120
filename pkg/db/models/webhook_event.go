package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent records processed provider callbacks. The unique index on
// ProviderEventID is the arena that makes at-least-once delivery idempotent.
type WebhookEvent struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProviderEventID   string    `gorm:"column:provider_event_id;not null;uniqueIndex:ux_webhook_events_provider_event"`
	ProviderSessionID string    `gorm:"column:provider_session_id;not null;index"`
	Outcome           string    `gorm:"column:outcome;not null"`
	ReceivedAt        time.Time `gorm:"column:received_at;autoCreateTime"`
}
