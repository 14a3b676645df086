package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerAccount exists solely as the per-user row the ledger locks while
// recording movements. It deliberately carries no cached balance column:
// balances are always derived by folding balance_movements.
type LedgerAccount struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
