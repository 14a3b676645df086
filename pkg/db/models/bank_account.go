package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// BankAccount is a payout destination owned by a user.
type BankAccount struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	BankCode      string                  `gorm:"column:bank_code;not null"`
	Branch        string                  `gorm:"column:branch;not null"`
	AccountNumber string                  `gorm:"column:account_number;not null"`
	HolderName    string                  `gorm:"column:holder_name;not null"`
	Document      string                  `gorm:"column:document;not null"`
	Status        enums.BankAccountStatus `gorm:"column:status;type:bank_account_status;not null;default:'pending'"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
