package enums

import "fmt"

// MovementType maps to the movement_type enum in Postgres.
type MovementType string

const (
	MovementTypeCommissionCredit   MovementType = "commission_credit"
	MovementTypeReleaseDebit       MovementType = "release_debit"
	MovementTypeReleaseCredit      MovementType = "release_credit"
	MovementTypeAnticipationDebit  MovementType = "anticipation_debit"
	MovementTypeAnticipationCredit MovementType = "anticipation_credit"
	MovementTypeWithdrawalDebit    MovementType = "withdrawal_debit"
	MovementTypeWithdrawalReversal MovementType = "withdrawal_reversal"
	MovementTypeRefundReversal     MovementType = "refund_reversal"
	MovementTypeChargebackReversal MovementType = "chargeback_reversal"
	MovementTypeDebtAdjustment     MovementType = "debt_adjustment"
)

var validMovementTypes = []MovementType{
	MovementTypeCommissionCredit,
	MovementTypeReleaseDebit,
	MovementTypeReleaseCredit,
	MovementTypeAnticipationDebit,
	MovementTypeAnticipationCredit,
	MovementTypeWithdrawalDebit,
	MovementTypeWithdrawalReversal,
	MovementTypeRefundReversal,
	MovementTypeChargebackReversal,
	MovementTypeDebtAdjustment,
}

// String implements fmt.Stringer.
func (t MovementType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical movement_type enum.
func (t MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
