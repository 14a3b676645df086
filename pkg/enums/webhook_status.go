package enums

import "fmt"

// WebhookStatus tracks a gateway delivery through the ingestion gate.
type WebhookStatus string

const (
	WebhookStatusReceived   WebhookStatus = "received"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusProcessed  WebhookStatus = "processed"
	WebhookStatusFailed     WebhookStatus = "failed"
	WebhookStatusDuplicate  WebhookStatus = "duplicate"
)

var validWebhookStatuses = []WebhookStatus{
	WebhookStatusReceived,
	WebhookStatusProcessing,
	WebhookStatusProcessed,
	WebhookStatusFailed,
	WebhookStatusDuplicate,
}

// String implements fmt.Stringer.
func (s WebhookStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WebhookStatus.
func (s WebhookStatus) IsValid() bool {
	for _, candidate := range validWebhookStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWebhookStatus converts raw input into a WebhookStatus.
func ParseWebhookStatus(value string) (WebhookStatus, error) {
	for _, candidate := range validWebhookStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook status %q", value)
}
