package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// Withdrawal debits available balance toward an external payout rail.
type Withdrawal struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	BankAccountID     uuid.UUID              `gorm:"column:bank_account_id;type:uuid;not null"`
	AmountCents       int64                  `gorm:"column:amount_cents;not null"`
	FeeCents          int64                  `gorm:"column:fee_cents;not null;default:0"`
	NetAmountCents    int64                  `gorm:"column:net_amount_cents;not null"`
	Status            enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status;not null;default:'pending'"`
	IdempotencyKey    string                 `gorm:"column:idempotency_key;not null;uniqueIndex"`
	ExternalReference *string                `gorm:"column:external_reference"`
	FailureReason     *string                `gorm:"column:failure_reason"`
	CompletedAt       *time.Time             `gorm:"column:completed_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
