package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// SaleCommission is one payee's share of an approved sale. Rows are created
// atomically on approval; the idempotency key prevents re-creation.
type SaleCommission struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SaleID           uuid.UUID              `gorm:"column:sale_id;type:uuid;not null;index"`
	UserID           uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Role             enums.CommissionRole   `gorm:"column:role;type:commission_role;not null"`
	Percentage       decimal.Decimal        `gorm:"column:percentage;type:decimal(10,4);not null"`
	CommissionCents  int64                  `gorm:"column:commission_amount_cents;not null"`
	NetAmountCents   int64                  `gorm:"column:net_amount_cents;not null"`
	Status           enums.CommissionStatus `gorm:"column:status;type:commission_status;not null;default:'pending'"`
	ReleaseDate      time.Time              `gorm:"column:release_date;not null;index"`
	IdempotencyKey   string                 `gorm:"column:idempotency_key;not null;uniqueIndex"`
	AnticipatedAt    *time.Time             `gorm:"column:anticipated_at"`
	ReversedAt       *time.Time             `gorm:"column:reversed_at"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
