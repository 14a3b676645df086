package models

import (
	"time"

	"github.com/google/uuid"
)

// AnticipationDebt records money owed back by a user after a refund or
// chargeback reversed funds that were already anticipated or withdrawn.
// Future earnings absorb the deficit instead of the reversal failing.
type AnticipationDebt struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	SaleID         uuid.UUID  `gorm:"column:sale_id;type:uuid;not null;index"`
	CommissionID   uuid.UUID  `gorm:"column:commission_id;type:uuid;not null"`
	AmountCents    int64      `gorm:"column:amount_cents;not null"`
	RemainingCents int64      `gorm:"column:remaining_cents;not null"`
	Reason         string     `gorm:"column:reason;not null"`
	SettledAt      *time.Time `gorm:"column:settled_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
