package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateSale         OutboxAggregateType = "sale"
	AggregateAnticipation OutboxAggregateType = "anticipation"
	AggregateWithdrawal   OutboxAggregateType = "withdrawal"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSale,
	AggregateAnticipation,
	AggregateWithdrawal,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventSaleCreated           OutboxEventType = "sale_created"
	EventSaleApproved          OutboxEventType = "sale_approved"
	EventSaleRefused           OutboxEventType = "sale_refused"
	EventSaleCancelled         OutboxEventType = "sale_cancelled"
	EventSaleExpired           OutboxEventType = "sale_expired"
	EventSaleRefunded          OutboxEventType = "sale_refunded"
	EventSaleChargeback        OutboxEventType = "sale_chargeback"
	EventAnticipationCompleted OutboxEventType = "anticipation_completed"
	EventWithdrawalRequested   OutboxEventType = "withdrawal_requested"
	EventWithdrawalCompleted   OutboxEventType = "withdrawal_completed"
	EventWithdrawalFailed      OutboxEventType = "withdrawal_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSaleCreated,
	EventSaleApproved,
	EventSaleRefused,
	EventSaleCancelled,
	EventSaleExpired,
	EventSaleRefunded,
	EventSaleChargeback,
	EventAnticipationCompleted,
	EventWithdrawalRequested,
	EventWithdrawalCompleted,
	EventWithdrawalFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
