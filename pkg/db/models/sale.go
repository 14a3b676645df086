package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// Sale records one buyer purchase event. Status is mutated only by the
// payment state machine; terminal statuses are immutable.
type Sale struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	SellerUserID    uuid.UUID           `gorm:"column:seller_user_id;type:uuid;not null;index"`
	AffiliateUserID *uuid.UUID          `gorm:"column:affiliate_user_id;type:uuid"`
	BuyerName       string              `gorm:"column:buyer_name;not null"`
	BuyerEmail      string              `gorm:"column:buyer_email;not null"`
	BuyerDocument   *string             `gorm:"column:buyer_document"`
	AmountCents     int64               `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency      `gorm:"column:currency;not null;default:'BRL'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Status          enums.SaleStatus    `gorm:"column:status;type:sale_status;not null;default:'pending'"`
	TransactionID   string              `gorm:"column:transaction_id;not null;uniqueIndex"`
	CouponCode      *string             `gorm:"column:coupon_code"`
	Shipping        json.RawMessage     `gorm:"column:shipping;type:jsonb"`
	ExpiresAt       *time.Time          `gorm:"column:expires_at"`
	ApprovedAt      *time.Time          `gorm:"column:approved_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
