package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// PaymentSplit funds one recipient wallet for a sale. It mirrors the
// commission's release/lock semantics for settlement timing.
type PaymentSplit struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SaleID          uuid.UUID           `gorm:"column:sale_id;type:uuid;not null;index"`
	CommissionID    uuid.UUID           `gorm:"column:commission_id;type:uuid;not null;index"`
	RecipientUserID uuid.UUID           `gorm:"column:recipient_user_id;type:uuid;not null;index"`
	AmountCents     int64               `gorm:"column:amount_cents;not null"`
	Bucket          enums.BalanceBucket `gorm:"column:bucket;type:balance_bucket;not null;default:'pending'"`
	ReleasedAt      *time.Time          `gorm:"column:released_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
