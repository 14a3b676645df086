package enums

import "fmt"

// AnticipationStatus tracks an anticipation batch through its lifecycle.
type AnticipationStatus string

const (
	AnticipationStatusPending    AnticipationStatus = "pending"
	AnticipationStatusProcessing AnticipationStatus = "processing"
	AnticipationStatusCompleted  AnticipationStatus = "completed"
	AnticipationStatusCancelled  AnticipationStatus = "cancelled"
	AnticipationStatusFailed     AnticipationStatus = "failed"
)

var validAnticipationStatuses = []AnticipationStatus{
	AnticipationStatusPending,
	AnticipationStatusProcessing,
	AnticipationStatusCompleted,
	AnticipationStatusCancelled,
	AnticipationStatusFailed,
}

// String implements fmt.Stringer.
func (s AnticipationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AnticipationStatus.
func (s AnticipationStatus) IsValid() bool {
	for _, candidate := range validAnticipationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAnticipationStatus converts raw input into an AnticipationStatus.
func ParseAnticipationStatus(value string) (AnticipationStatus, error) {
	for _, candidate := range validAnticipationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid anticipation status %q", value)
}
