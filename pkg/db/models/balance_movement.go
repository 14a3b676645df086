package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// BalanceMovement is an append-only ledger row. Amounts are signed;
// balance_before/balance_after snapshot the total balance at write time.
type BalanceMovement struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID             uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents        int64               `gorm:"column:amount_cents;not null"`
	Bucket             enums.BalanceBucket `gorm:"column:bucket;type:balance_bucket;not null"`
	MovementType       enums.MovementType  `gorm:"column:movement_type;type:movement_type;not null"`
	BalanceBeforeCents int64               `gorm:"column:balance_before_cents;not null"`
	BalanceAfterCents  int64               `gorm:"column:balance_after_cents;not null"`
	ReferenceType      string              `gorm:"column:reference_type;not null"`
	ReferenceID        uuid.UUID           `gorm:"column:reference_id;type:uuid;not null;index"`
	Description        string              `gorm:"column:description"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
}
