package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
)

// gatewayEnvelope is the delivery body the payment gateway posts for every
// transaction status change.
type gatewayEnvelope struct {
	EventID     string             `json:"event_id"`
	EventType   string             `json:"event_type"`
	OccurredAt  time.Time          `json:"occurred_at"`
	Transaction gatewayTransaction `json:"transaction"`
}

type gatewayTransaction struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

func parseEnvelope(body []byte) (*gatewayEnvelope, error) {
	var env gatewayEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	if env.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event_id is required")
	}
	if env.Transaction.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction.id is required")
	}
	if env.Transaction.Status == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction.status is required")
	}
	return &env, nil
}

// mapGatewayStatus translates the gateway's transaction status vocabulary
// into the sale state machine's target statuses.
func mapGatewayStatus(status string) (enums.SaleStatus, error) {
	switch status {
	case "paid", "approved":
		return enums.SaleStatusApproved, nil
	case "refused", "declined":
		return enums.SaleStatusRefused, nil
	case "cancelled", "canceled":
		return enums.SaleStatusCancelled, nil
	case "expired":
		return enums.SaleStatusExpired, nil
	case "refunded":
		return enums.SaleStatusRefunded, nil
	case "chargeback", "charged_back":
		return enums.SaleStatusChargeback, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown gateway status %q", status))
	}
}
