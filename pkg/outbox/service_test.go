package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	"github.com/centpay/centpay-backend/pkg/outbox/payloads"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// The model relies on gen_random_uuid(), which sqlite does not have, so
	// the table is declared by hand with an equivalent default.
	ddl := `CREATE TABLE outbox_events (
		id text PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload text NOT NULL,
		created_at datetime,
		published_at datetime,
		attempt_count integer NOT NULL DEFAULT 0,
		last_error text
	)`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestEmitStoresEnvelopedEvent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)

	saleID := uuid.New()
	sellerID := uuid.New()
	occurred := time.Now().UTC().Truncate(time.Second)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventSaleApproved,
			AggregateType: enums.AggregateSale,
			AggregateID:   saleID,
			Actor:         &ActorRef{UserID: sellerID, Role: "seller"},
			Data: payloads.SaleApprovedEvent{
				SaleID:           saleID,
				SellerUserID:     sellerID,
				GrossAmountCents: 10000,
				NetAmountCents:   9000,
				PlatformFeeCents: 1000,
				CommissionCount:  2,
				ApprovedAt:       occurred,
			},
			Version:    1,
			OccurredAt: occurred,
		})
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var row models.OutboxEvent
	if err := db.Where("aggregate_id = ?", saleID).First(&row).Error; err != nil {
		t.Fatalf("load outbox row: %v", err)
	}
	if row.EventType != enums.EventSaleApproved || row.AggregateType != enums.AggregateSale {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.PublishedAt != nil || row.AttemptCount != 0 {
		t.Fatalf("new row must be unpublished: %+v", row)
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("unexpected envelope version: %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		t.Fatalf("envelope event id must be a uuid: %q", envelope.EventID)
	}
	if !envelope.OccurredAt.Equal(occurred) {
		t.Fatalf("occurred_at mangled: %v vs %v", envelope.OccurredAt, occurred)
	}
	if envelope.Actor == nil || envelope.Actor.UserID != sellerID || envelope.Actor.Role != "seller" {
		t.Fatalf("actor mangled: %+v", envelope.Actor)
	}

	var data payloads.SaleApprovedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.SaleID != saleID || data.GrossAmountCents != 10000 || data.CommissionCount != 2 {
		t.Fatalf("payload mangled: %+v", data)
	}
}

func TestEmitDefaultsOccurredAt(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)

	saleID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventSaleCreated,
			AggregateType: enums.AggregateSale,
			AggregateID:   saleID,
			Data:          payloads.SaleCreatedEvent{SaleID: saleID},
			Version:       1,
		})
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var row models.OutboxEvent
	if err := db.Where("aggregate_id = ?", saleID).First(&row).Error; err != nil {
		t.Fatalf("load outbox row: %v", err)
	}
	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.OccurredAt.IsZero() {
		t.Fatal("occurred_at must be stamped when the caller omits it")
	}
	if envelope.Actor != nil {
		t.Fatalf("actor must be omitted when absent: %+v", envelope.Actor)
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	t.Parallel()

	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
	})
	if err == nil {
		t.Fatal("expected error without a transaction")
	}
}
