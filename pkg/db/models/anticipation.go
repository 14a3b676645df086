package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// Anticipation is a batch of held commissions pulled forward for a fee.
type Anticipation struct {
	ID                    uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Status                enums.AnticipationStatus `gorm:"column:status;type:anticipation_status;not null;default:'pending'"`
	FeePercentage         decimal.Decimal          `gorm:"column:fee_percentage;type:decimal(10,4);not null"`
	TotalOriginalCents    int64                    `gorm:"column:total_original_amount_cents;not null"`
	TotalAnticipatedCents int64                    `gorm:"column:total_anticipated_amount_cents;not null"`
	FeeCents              int64                    `gorm:"column:fee_amount_cents;not null"`
	IdempotencyKey        string                   `gorm:"column:idempotency_key;not null;uniqueIndex"`
	CompletedAt           *time.Time               `gorm:"column:completed_at"`
	FailureReason         *string                  `gorm:"column:failure_reason"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// AnticipationItem links a batch to one anticipated commission.
type AnticipationItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	AnticipationID uuid.UUID `gorm:"column:anticipation_id;type:uuid;not null;index"`
	CommissionID   uuid.UUID `gorm:"column:commission_id;type:uuid;not null;uniqueIndex:ux_anticipation_items_commission"`
	OriginalCents  int64     `gorm:"column:original_amount_cents;not null"`
	FeeCents       int64     `gorm:"column:fee_amount_cents;not null"`
	NetCents       int64     `gorm:"column:net_amount_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
