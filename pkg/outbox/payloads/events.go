package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/pkg/enums"
)

// SaleCreatedEvent signals a new pending sale awaiting gateway confirmation.
type SaleCreatedEvent struct {
	SaleID        uuid.UUID           `json:"sale_id"`
	SellerUserID  uuid.UUID           `json:"seller_user_id"`
	AmountCents   int64               `json:"amount_cents"`
	Currency      enums.Currency      `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TransactionID string              `json:"transaction_id"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
}

// SaleApprovedEvent is emitted once per sale when payment confirms and the
// commission split has been persisted.
type SaleApprovedEvent struct {
	SaleID           uuid.UUID `json:"sale_id"`
	SellerUserID     uuid.UUID `json:"seller_user_id"`
	GrossAmountCents int64     `json:"gross_amount_cents"`
	NetAmountCents   int64     `json:"net_amount_cents"`
	PlatformFeeCents int64     `json:"platform_fee_cents"`
	GatewayFeeCents  int64     `json:"gateway_fee_cents"`
	CommissionCount  int       `json:"commission_count"`
	ApprovedAt       time.Time `json:"approved_at"`
}

// SaleStatusEvent covers refusals, cancellations, and expirations.
type SaleStatusEvent struct {
	SaleID       uuid.UUID        `json:"sale_id"`
	SellerUserID uuid.UUID        `json:"seller_user_id"`
	Status       enums.SaleStatus `json:"status"`
	Reason       string           `json:"reason,omitempty"`
}

// SaleReversedEvent is emitted when an approved sale is refunded or charged
// back and its commissions were reversed.
type SaleReversedEvent struct {
	SaleID          uuid.UUID        `json:"sale_id"`
	SellerUserID    uuid.UUID        `json:"seller_user_id"`
	Status          enums.SaleStatus `json:"status"`
	ReversedCents   int64            `json:"reversed_cents"`
	DebtCreated     bool             `json:"debt_created"`
	DebtAmountCents int64            `json:"debt_amount_cents,omitempty"`
}

// AnticipationCompletedEvent reports an early settlement of pending commissions.
type AnticipationCompletedEvent struct {
	AnticipationID  uuid.UUID `json:"anticipation_id"`
	UserID          uuid.UUID `json:"user_id"`
	GrossCents      int64     `json:"gross_cents"`
	FeeCents        int64     `json:"fee_cents"`
	NetCents        int64     `json:"net_cents"`
	CommissionCount int       `json:"commission_count"`
	CompletedAt     time.Time `json:"completed_at"`
}

// WithdrawalRequestedEvent asks the payout rail to move reserved funds out.
type WithdrawalRequestedEvent struct {
	WithdrawalID  uuid.UUID `json:"withdrawal_id"`
	UserID        uuid.UUID `json:"user_id"`
	BankAccountID uuid.UUID `json:"bank_account_id"`
	AmountCents   int64     `json:"amount_cents"`
	FeeCents      int64     `json:"fee_cents"`
}

// WithdrawalResultEvent closes a withdrawal as completed or failed.
type WithdrawalResultEvent struct {
	WithdrawalID uuid.UUID              `json:"withdrawal_id"`
	UserID       uuid.UUID              `json:"user_id"`
	Status       enums.WithdrawalStatus `json:"status"`
	AmountCents  int64                  `json:"amount_cents"`
	Reason       string                 `json:"reason,omitempty"`
}
