package enums

import "fmt"

// BankAccountStatus reflects payout destination verification.
type BankAccountStatus string

const (
	BankAccountStatusPending  BankAccountStatus = "pending"
	BankAccountStatusVerified BankAccountStatus = "verified"
	BankAccountStatusRejected BankAccountStatus = "rejected"
)

var validBankAccountStatuses = []BankAccountStatus{
	BankAccountStatusPending,
	BankAccountStatusVerified,
	BankAccountStatusRejected,
}

// String implements fmt.Stringer.
func (s BankAccountStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BankAccountStatus.
func (s BankAccountStatus) IsValid() bool {
	for _, candidate := range validBankAccountStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBankAccountStatus converts raw input into a BankAccountStatus.
func ParseBankAccountStatus(value string) (BankAccountStatus, error) {
	for _, candidate := range validBankAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bank account status %q", value)
}
