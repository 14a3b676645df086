package anticipation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/pkg/config"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:anticipation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.SaleCommission{},
		&models.Anticipation{},
		&models.AnticipationItem{},
		&models.LedgerAccount{},
		&models.BalanceMovement{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type gormRunner struct {
	db *gorm.DB
}

func (r *gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	db     *gorm.DB
	svc    Service
	ledger ledger.Service
	outbox *fakeOutbox
	user   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}
	fake := &fakeOutbox{}
	svc, err := NewService(NewRepository(db), &gormRunner{db: db}, fake, ledgerSvc, config.AnticipationConfig{
		DailyRatePercent: "0.04",
		MinAmountCents:   1000,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{db: db, svc: svc, ledger: ledgerSvc, outbox: fake, user: uuid.New()}
}

// seedCommission creates a pending held commission and its matching pending
// ledger credit, as the sale approval path would have.
func seedCommission(t *testing.T, f *fixture, amountCents int64, releaseIn time.Duration) *models.SaleCommission {
	t.Helper()
	commission := &models.SaleCommission{
		ID:              uuid.New(),
		SaleID:          uuid.New(),
		UserID:          f.user,
		Role:            enums.CommissionRoleProducer,
		Percentage:      decimal.RequireFromString("70"),
		CommissionCents: amountCents,
		NetAmountCents:  amountCents,
		Status:          enums.CommissionStatusPending,
		ReleaseDate:     time.Now().Add(releaseIn),
		IdempotencyKey:  "comm_" + uuid.NewString(),
	}
	if err := f.db.Create(commission).Error; err != nil {
		t.Fatalf("create commission: %v", err)
	}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.RecordMovement(context.Background(), tx, ledger.MovementInput{
			UserID:        f.user,
			AmountCents:   amountCents,
			Bucket:        enums.BalanceBucketPending,
			MovementType:  enums.MovementTypeCommissionCredit,
			ReferenceType: "sale_commission",
			ReferenceID:   commission.ID,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed ledger credit: %v", err)
	}
	return commission
}

func TestRequestAndProcessAnticipation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedCommission(t, f, 7000, 10*24*time.Hour+time.Hour)
	seedCommission(t, f, 3000, 10*24*time.Hour+time.Hour)

	batch, err := f.svc.Request(context.Background(), RequestInput{
		UserID:         f.user,
		IdempotencyKey: "antic_1",
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if batch.TotalOriginalCents != 10000 {
		t.Fatalf("unexpected total: %+v", batch)
	}
	// 0.04% a day, 11 whole days left: 31c on 7000, 13c on 3000.
	if batch.FeeCents != 44 || batch.TotalAnticipatedCents != 9956 {
		t.Fatalf("unexpected fee math: %+v", batch)
	}
	if batch.Status != enums.AnticipationStatusPending {
		t.Fatalf("request must not settle: %s", batch.Status)
	}

	processed, err := f.svc.Process(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if processed.Status != enums.AnticipationStatusCompleted || processed.CompletedAt == nil {
		t.Fatalf("batch not completed: %+v", processed)
	}

	balance, err := f.ledger.GetBalance(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.PendingCents != 0 || balance.AvailableCents != 9956 || balance.AnticipatedCents != 9956 {
		t.Fatalf("unexpected balance after anticipation: %+v", balance)
	}

	var commissions []models.SaleCommission
	if err := f.db.Where("user_id = ?", f.user).Find(&commissions).Error; err != nil {
		t.Fatalf("load commissions: %v", err)
	}
	for _, c := range commissions {
		if c.Status != enums.CommissionStatusAnticipated || c.AnticipatedAt == nil {
			t.Fatalf("commission not flipped: %+v", c)
		}
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventAnticipationCompleted {
		t.Fatalf("unexpected outbox events: %+v", f.outbox.events)
	}
}

func TestRequestReplaysOnIdempotencyKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedCommission(t, f, 7000, 5*24*time.Hour)

	first, err := f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_replay"})
	if err != nil {
		t.Fatalf("first Request: %v", err)
	}
	second, err := f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_replay"})
	if err != nil {
		t.Fatalf("second Request: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new batch: %s vs %s", first.ID, second.ID)
	}

	var count int64
	if err := f.db.Model(&models.Anticipation{}).Count(&count).Error; err != nil {
		t.Fatalf("count batches: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one batch, got %d", count)
	}
}

func TestRequestRejectsBelowMinimum(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedCommission(t, f, 500, 5*24*time.Hour)

	_, err := f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_min"})
	if err == nil {
		t.Fatal("expected minimum amount error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessFailsAtomicallyOnReversedCommission(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := seedCommission(t, f, 7000, 10*24*time.Hour)
	seedCommission(t, f, 3000, 10*24*time.Hour)

	batch, err := f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_conflict"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	// A refund reverses one commission between request and settlement.
	res := f.db.Model(&models.SaleCommission{}).
		Where("id = ?", first.ID).
		Update("status", enums.CommissionStatusReversed)
	if res.Error != nil || res.RowsAffected != 1 {
		t.Fatalf("reverse commission: %v", res.Error)
	}

	_, err = f.svc.Process(context.Background(), batch.ID)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}

	var stored models.Anticipation
	if err := f.db.Where("id = ?", batch.ID).First(&stored).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if stored.Status != enums.AnticipationStatusFailed || stored.FailureReason == nil {
		t.Fatalf("batch must fail: %+v", stored)
	}

	// The untouched commission must roll back to pending, and no money moved.
	var other models.SaleCommission
	if err := f.db.Where("user_id = ? AND id <> ?", f.user, first.ID).First(&other).Error; err != nil {
		t.Fatalf("load other commission: %v", err)
	}
	if other.Status != enums.CommissionStatusPending {
		t.Fatalf("partial flip leaked: %+v", other)
	}
	balance, err := f.ledger.GetBalance(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.PendingCents != 10000 || balance.AvailableCents != 0 {
		t.Fatalf("failed batch must not move money: %+v", balance)
	}
}

func TestFailedBatchReleasesCommissionsForNewRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	reversed := seedCommission(t, f, 7000, 10*24*time.Hour)
	survivor := seedCommission(t, f, 3000, 10*24*time.Hour)

	batch, err := f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_retry_1"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	res := f.db.Model(&models.SaleCommission{}).
		Where("id = ?", reversed.ID).
		Update("status", enums.CommissionStatusReversed)
	if res.Error != nil || res.RowsAffected != 1 {
		t.Fatalf("reverse commission: %v", res.Error)
	}

	if _, err := f.svc.Process(context.Background(), batch.ID); err == nil {
		t.Fatal("expected conflict error")
	}

	// The surviving commission must be requestable again after the batch fails.
	retry, err := f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_retry_2"})
	if err != nil {
		t.Fatalf("Request after failed batch: %v", err)
	}
	if retry.TotalOriginalCents != 3000 {
		t.Fatalf("expected only the surviving commission, got %+v", retry)
	}

	var items []models.AnticipationItem
	if err := f.db.Where("anticipation_id = ?", retry.ID).Find(&items).Error; err != nil {
		t.Fatalf("load retry items: %v", err)
	}
	if len(items) != 1 || items[0].CommissionID != survivor.ID {
		t.Fatalf("unexpected retry items: %+v", items)
	}
}

func TestAnticipatedCommissionIsNotEligibleAgain(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedCommission(t, f, 7000, 10*24*time.Hour)

	batch, err := f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_once"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := f.svc.Process(context.Background(), batch.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	_, err = f.svc.Request(context.Background(), RequestInput{UserID: f.user, IdempotencyKey: "antic_again"})
	if err == nil {
		t.Fatal("expected no eligible commissions")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}
