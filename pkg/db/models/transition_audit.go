package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// TransitionAudit records every rejected or reconciled status transition so
// replayed or out-of-order gateway events leave a trail instead of moving a
// sale backward silently.
type TransitionAudit struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SaleID     uuid.UUID        `gorm:"column:sale_id;type:uuid;not null;index"`
	FromStatus enums.SaleStatus `gorm:"column:from_status;type:sale_status;not null"`
	ToStatus   enums.SaleStatus `gorm:"column:to_status;type:sale_status;not null"`
	Applied    bool             `gorm:"column:applied;not null"`
	Source     string           `gorm:"column:source;not null"`
	Reason     string           `gorm:"column:reason;not null"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}
