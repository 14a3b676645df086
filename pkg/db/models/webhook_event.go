package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// WebhookEvent is the dedup record for one gateway delivery. The payload is
// immutable; only status, retry_count and error_message advance.
type WebhookEvent struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Gateway       string              `gorm:"column:gateway;not null;uniqueIndex:ux_webhook_events_gateway_event"`
	EventID       string              `gorm:"column:event_id;not null;uniqueIndex:ux_webhook_events_gateway_event"`
	EventType     string              `gorm:"column:event_type;not null"`
	TransactionID string              `gorm:"column:transaction_id;not null;index"`
	Payload       json.RawMessage     `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.WebhookStatus `gorm:"column:status;type:webhook_status;not null;default:'received'"`
	RetryCount    int                 `gorm:"column:retry_count;not null;default:0"`
	ErrorMessage  *string             `gorm:"column:error_message"`
	ProcessedAt   *time.Time          `gorm:"column:processed_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
