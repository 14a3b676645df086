package enums

import "fmt"

// SaleStatus maps to the sale_status enum in Postgres.
type SaleStatus string

const (
	SaleStatusPending    SaleStatus = "pending"
	SaleStatusApproved   SaleStatus = "approved"
	SaleStatusRefused    SaleStatus = "refused"
	SaleStatusCancelled  SaleStatus = "cancelled"
	SaleStatusExpired    SaleStatus = "expired"
	SaleStatusRefunded   SaleStatus = "refunded"
	SaleStatusChargeback SaleStatus = "chargeback"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusPending,
	SaleStatusApproved,
	SaleStatusRefused,
	SaleStatusCancelled,
	SaleStatusExpired,
	SaleStatusRefunded,
	SaleStatusChargeback,
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a sale in this status accepts no further events.
func (s SaleStatus) IsTerminal() bool {
	switch s {
	case SaleStatusRefused, SaleStatusCancelled, SaleStatusExpired, SaleStatusRefunded, SaleStatusChargeback:
		return true
	}
	return false
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
