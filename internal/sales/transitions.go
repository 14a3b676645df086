package sales

import "github.com/centpay/centpay-backend/pkg/enums"

// transitions is the canonical payment state machine. Anything not listed is
// rejected and audited, never applied.
var transitions = map[enums.SaleStatus][]enums.SaleStatus{
	enums.SaleStatusPending: {
		enums.SaleStatusApproved,
		enums.SaleStatusRefused,
		enums.SaleStatusCancelled,
		enums.SaleStatusExpired,
	},
	enums.SaleStatusApproved: {
		enums.SaleStatusRefunded,
		enums.SaleStatusChargeback,
	},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to enums.SaleStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
