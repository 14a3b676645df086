package enums

import "fmt"

// CommissionStatus tracks the settlement lifecycle of a commission row.
type CommissionStatus string

const (
	CommissionStatusPending     CommissionStatus = "pending"
	CommissionStatusAvailable   CommissionStatus = "available"
	CommissionStatusAnticipated CommissionStatus = "anticipated"
	CommissionStatusPaid        CommissionStatus = "paid"
	CommissionStatusReversed    CommissionStatus = "reversed"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusAvailable,
	CommissionStatusAnticipated,
	CommissionStatusPaid,
	CommissionStatusReversed,
}

// String implements fmt.Stringer.
func (s CommissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CommissionStatus.
func (s CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
