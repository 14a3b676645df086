package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// FinancialTransaction is the money movement tied to a Sale. It mirrors the
// sale's payment lifecycle and carries the frozen fee snapshot used for
// deterministic re-derivation of splits.
type FinancialTransaction struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SaleID             uuid.UUID        `gorm:"column:sale_id;type:uuid;not null;index"`
	GrossAmountCents   int64            `gorm:"column:gross_amount_cents;not null"`
	GatewayFeeCents    int64            `gorm:"column:gateway_fee_cents;not null;default:0"`
	PlatformFeeCents   int64            `gorm:"column:platform_fee_cents;not null;default:0"`
	NetAmountCents     int64            `gorm:"column:net_amount_cents;not null;default:0"`
	Status             enums.SaleStatus `gorm:"column:status;type:sale_status;not null;default:'pending'"`
	IdempotencyKey     string           `gorm:"column:idempotency_key;not null;uniqueIndex"`
	CalculationDetails json.RawMessage  `gorm:"column:calculation_details;type:jsonb"`
	PaidAt             *time.Time       `gorm:"column:paid_at"`
	ReleasedAt         *time.Time       `gorm:"column:released_at"`
	IsReleased         bool             `gorm:"column:is_released;not null;default:false"`
	IsWithdrawn        bool             `gorm:"column:is_withdrawn;not null;default:false"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
