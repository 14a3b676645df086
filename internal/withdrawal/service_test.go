package withdrawal

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/bankaccounts"
	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/pkg/config"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:withdrawal_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Withdrawal{},
		&models.BankAccount{},
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
	accounts, err := bankaccounts.NewService(bankaccounts.NewRepository(db))
	if err != nil {
		t.Fatalf("bankaccounts.NewService: %v", err)
	}
	fake := &fakeOutbox{}
	svc, err := NewService(NewRepository(db), &gormRunner{db: db}, fake, ledgerSvc, accounts, config.WithdrawalConfig{
		MinAmountCents: 2000,
		FeeCents:       367,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{db: db, svc: svc, ledger: ledgerSvc, outbox: fake, user: uuid.New()}
}

func seedAvailable(t *testing.T, f *fixture, amountCents int64) {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.RecordMovement(context.Background(), tx, ledger.MovementInput{
			UserID:        f.user,
			AmountCents:   amountCents,
			Bucket:        enums.BalanceBucketAvailable,
			MovementType:  enums.MovementTypeReleaseCredit,
			ReferenceType: "sale_commission",
			ReferenceID:   uuid.New(),
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

func seedBankAccount(t *testing.T, f *fixture, status enums.BankAccountStatus) *models.BankAccount {
	t.Helper()
	account := &models.BankAccount{
		ID:            uuid.New(),
		UserID:        f.user,
		BankCode:      "341",
		Branch:        "0001",
		AccountNumber: "12345-6",
		HolderName:    "Ana Prado",
		Document:      "12345678901",
		Status:        status,
	}
	if err := f.db.Create(account).Error; err != nil {
		t.Fatalf("create bank account: %v", err)
	}
	return account
}

func TestRequestReservesFunds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedAvailable(t, f, 10000)
	account := seedBankAccount(t, f, enums.BankAccountStatusVerified)

	withdrawal, err := f.svc.Request(context.Background(), RequestInput{
		UserID:         f.user,
		BankAccountID:  account.ID,
		AmountCents:    5000,
		IdempotencyKey: "wd_1",
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if withdrawal.Status != enums.WithdrawalStatusPending || withdrawal.NetAmountCents != 4633 {
		t.Fatalf("unexpected withdrawal: %+v", withdrawal)
	}

	balance, err := f.ledger.GetBalance(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableCents != 5000 {
		t.Fatalf("funds must be reserved immediately: %+v", balance)
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventWithdrawalRequested {
		t.Fatalf("unexpected outbox events: %+v", f.outbox.events)
	}
}

func TestRequestInsufficientFunds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedAvailable(t, f, 3000)
	account := seedBankAccount(t, f, enums.BankAccountStatusVerified)

	_, err := f.svc.Request(context.Background(), RequestInput{
		UserID:         f.user,
		BankAccountID:  account.ID,
		AmountCents:    5000,
		IdempotencyKey: "wd_poor",
	})
	if err == nil {
		t.Fatal("expected insufficient funds")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	if err := f.db.Model(&models.Withdrawal{}).Count(&count).Error; err != nil {
		t.Fatalf("count withdrawals: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected request must not persist: %d rows", count)
	}
	balance, err := f.ledger.GetBalance(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableCents != 3000 {
		t.Fatalf("balance must be untouched: %+v", balance)
	}
}

func TestRequestRejectsUnverifiedAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedAvailable(t, f, 10000)
	account := seedBankAccount(t, f, enums.BankAccountStatusPending)

	_, err := f.svc.Request(context.Background(), RequestInput{
		UserID:         f.user,
		BankAccountID:  account.ID,
		AmountCents:    5000,
		IdempotencyKey: "wd_unverified",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestRejectsForeignAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedAvailable(t, f, 10000)
	account := seedBankAccount(t, f, enums.BankAccountStatusVerified)

	_, err := f.svc.Request(context.Background(), RequestInput{
		UserID:         uuid.New(),
		BankAccountID:  account.ID,
		AmountCents:    5000,
		IdempotencyKey: "wd_foreign",
	})
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestReplaysOnIdempotencyKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedAvailable(t, f, 10000)
	account := seedBankAccount(t, f, enums.BankAccountStatusVerified)

	input := RequestInput{
		UserID:         f.user,
		BankAccountID:  account.ID,
		AmountCents:    5000,
		IdempotencyKey: "wd_replay",
	}
	first, err := f.svc.Request(context.Background(), input)
	if err != nil {
		t.Fatalf("first Request: %v", err)
	}
	second, err := f.svc.Request(context.Background(), input)
	if err != nil {
		t.Fatalf("second Request: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new withdrawal")
	}

	balance, err := f.ledger.GetBalance(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableCents != 5000 {
		t.Fatalf("replay must not debit twice: %+v", balance)
	}
}

func TestFailReturnsFunds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedAvailable(t, f, 10000)
	account := seedBankAccount(t, f, enums.BankAccountStatusVerified)

	withdrawal, err := f.svc.Request(context.Background(), RequestInput{
		UserID:         f.user,
		BankAccountID:  account.ID,
		AmountCents:    5000,
		IdempotencyKey: "wd_fail",
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if err := f.svc.Fail(context.Background(), withdrawal.ID, "rail rejected the account"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	balance, err := f.ledger.GetBalance(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableCents != 10000 {
		t.Fatalf("failed withdrawal must return funds: %+v", balance)
	}

	// A completion after the failure must not double-settle.
	err = f.svc.Confirm(context.Background(), withdrawal.ID, "ext_1")
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfirmCompletesWithdrawal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedAvailable(t, f, 10000)
	account := seedBankAccount(t, f, enums.BankAccountStatusVerified)

	withdrawal, err := f.svc.Request(context.Background(), RequestInput{
		UserID:         f.user,
		BankAccountID:  account.ID,
		AmountCents:    5000,
		IdempotencyKey: "wd_ok",
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if err := f.svc.Confirm(context.Background(), withdrawal.ID, "e2e_123"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	stored, err := f.svc.Get(context.Background(), f.user, withdrawal.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != enums.WithdrawalStatusCompleted || stored.ExternalReference == nil || stored.CompletedAt == nil {
		t.Fatalf("withdrawal not completed: %+v", stored)
	}

	balance, err := f.ledger.GetBalance(context.Background(), f.user)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableCents != 5000 {
		t.Fatalf("completion must not change the balance again: %+v", balance)
	}
}
