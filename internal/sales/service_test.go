package sales

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/fees"
	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:sales_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Sale{},
		&models.FinancialTransaction{},
		&models.SaleCommission{},
		&models.PaymentSplit{},
		&models.TransitionAudit{},
		&models.AnticipationDebt{},
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

func (f *fakeOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		panic("outbox emit without transaction")
	}
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      Service
	repo     Repository
	ledger   ledger.Service
	outbox   *fakeOutbox
	platform uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	repo := NewRepository(db)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}
	fake := &fakeOutbox{}
	platform := uuid.New()
	svc, err := NewService(repo, &gormRunner{db: db}, fake, ledgerSvc, platform)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{db: db, svc: svc, repo: repo, ledger: ledgerSvc, outbox: fake, platform: platform}
}

// seedSale creates a pending pix sale of 100.00 BRL with a frozen snapshot of
// platform 10% and affiliate 20%, settling after two days.
func seedSale(t *testing.T, f *fixture, status enums.SaleStatus) (*models.Sale, uuid.UUID) {
	t.Helper()
	seller := uuid.New()
	affiliate := uuid.New()
	snap := fees.Snapshot{
		SchemaVersion:    fees.SnapshotSchemaVersion,
		PaymentMethod:    enums.PaymentMethodPix,
		SettlementDays:   2,
		PlatformPercent:  decimal.RequireFromString("10"),
		AffiliatePercent: decimal.RequireFromString("20"),
	}
	raw, err := snap.Marshal()
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	sale := &models.Sale{
		ID:              uuid.New(),
		ProductID:       uuid.New(),
		SellerUserID:    seller,
		AffiliateUserID: &affiliate,
		BuyerName:       "Maria Souza",
		BuyerEmail:      "maria@example.com",
		AmountCents:     10000,
		Currency:        enums.CurrencyBRL,
		PaymentMethod:   enums.PaymentMethodPix,
		Status:          status,
		TransactionID:   "txn_" + uuid.NewString(),
	}
	if err := f.repo.CreateSale(context.Background(), sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	ft := &models.FinancialTransaction{
		ID:                 uuid.New(),
		SaleID:             sale.ID,
		GrossAmountCents:   sale.AmountCents,
		Status:             status,
		IdempotencyKey:     "ft_" + sale.ID.String(),
		CalculationDetails: raw,
	}
	if err := f.repo.CreateTransaction(context.Background(), ft); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return sale, affiliate
}

func approve(t *testing.T, f *fixture, sale *models.Sale) {
	t.Helper()
	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusApproved,
		AmountCents:   sale.AmountCents,
		Source:        "gateway",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func TestApplyPaymentEventApprovesSale(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, affiliate := seedSale(t, f, enums.SaleStatusPending)

	approve(t, f, sale)

	stored, err := f.svc.GetSale(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if stored.Status != enums.SaleStatusApproved || stored.ApprovedAt == nil {
		t.Fatalf("sale not approved: %+v", stored)
	}

	commissions, err := f.svc.ListCommissions(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("ListCommissions: %v", err)
	}
	if len(commissions) != 3 {
		t.Fatalf("expected 3 commissions, got %d", len(commissions))
	}
	byRole := map[enums.CommissionRole]models.SaleCommission{}
	for _, c := range commissions {
		byRole[c.Role] = c
	}
	if byRole[enums.CommissionRoleProducer].CommissionCents != 7000 {
		t.Fatalf("producer commission: %+v", byRole[enums.CommissionRoleProducer])
	}
	if byRole[enums.CommissionRoleAffiliate].CommissionCents != 2000 {
		t.Fatalf("affiliate commission: %+v", byRole[enums.CommissionRoleAffiliate])
	}
	if byRole[enums.CommissionRolePlatform].CommissionCents != 1000 {
		t.Fatalf("platform commission: %+v", byRole[enums.CommissionRolePlatform])
	}

	balance, err := f.ledger.GetBalance(context.Background(), affiliate)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.PendingCents != 2000 || balance.AvailableCents != 0 {
		t.Fatalf("unexpected affiliate balance: %+v", balance)
	}

	var splits []models.PaymentSplit
	if err := f.db.Where("sale_id = ?", sale.ID).Find(&splits).Error; err != nil {
		t.Fatalf("load splits: %v", err)
	}
	if len(splits) != 3 {
		t.Fatalf("expected 3 splits, got %d", len(splits))
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventSaleApproved {
		t.Fatalf("unexpected outbox events: %+v", f.outbox.events)
	}
}

func TestApplyPaymentEventReplayIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, _ := seedSale(t, f, enums.SaleStatusPending)
	approve(t, f, sale)

	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusApproved,
		AmountCents:   sale.AmountCents,
		Source:        "gateway",
	})
	if err != nil {
		t.Fatalf("replay should be a no-op: %v", err)
	}

	commissions, err := f.svc.ListCommissions(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("ListCommissions: %v", err)
	}
	if len(commissions) != 3 {
		t.Fatalf("replay duplicated commissions: %d", len(commissions))
	}

	var audits []models.TransitionAudit
	if err := f.db.Where("sale_id = ? AND applied = ?", sale.ID, false).Find(&audits).Error; err != nil {
		t.Fatalf("load audits: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("replay should leave one rejected audit, got %d", len(audits))
	}
}

func TestApplyPaymentEventAmountMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, _ := seedSale(t, f, enums.SaleStatusPending)

	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusApproved,
		AmountCents:   9999,
		Source:        "gateway",
	})
	if err == nil {
		t.Fatal("expected reconciliation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReconciliation {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := f.svc.GetSale(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if stored.Status != enums.SaleStatusPending {
		t.Fatalf("mismatched amount must not move the sale: %s", stored.Status)
	}
}

func TestApplyPaymentEventMissingAmountIsMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, _ := seedSale(t, f, enums.SaleStatusPending)

	// An approval that omits the paid amount must not be taken on faith.
	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusApproved,
		Source:        "gateway",
	})
	if err == nil {
		t.Fatal("expected reconciliation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReconciliation {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := f.svc.GetSale(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if stored.Status != enums.SaleStatusPending {
		t.Fatalf("missing amount must not move the sale: %s", stored.Status)
	}
}

func TestApplyPaymentEventRejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, _ := seedSale(t, f, enums.SaleStatusPending)

	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusRefunded,
		Source:        "gateway",
	})
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}

	var audits []models.TransitionAudit
	if err := f.db.Where("sale_id = ?", sale.ID).Find(&audits).Error; err != nil {
		t.Fatalf("load audits: %v", err)
	}
	if len(audits) != 1 || audits[0].Applied {
		t.Fatalf("rejected transition must be audited: %+v", audits)
	}
}

func TestApplyPaymentEventLateApproval(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, _ := seedSale(t, f, enums.SaleStatusExpired)

	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusApproved,
		AmountCents:   sale.AmountCents,
		Source:        "gateway",
	})
	if err == nil {
		t.Fatal("expected reconciliation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReconciliation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyPaymentEventExpiresPendingSale(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, _ := seedSale(t, f, enums.SaleStatusPending)

	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusExpired,
		Source:        "expiry-worker",
		Reason:        "pix charge expired",
	})
	if err != nil {
		t.Fatalf("expire: %v", err)
	}

	stored, err := f.svc.GetSale(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if stored.Status != enums.SaleStatusExpired {
		t.Fatalf("unexpected status %s", stored.Status)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventSaleExpired {
		t.Fatalf("unexpected outbox events: %+v", f.outbox.events)
	}
}

func TestRefundReversesCommissions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, affiliate := seedSale(t, f, enums.SaleStatusPending)
	approve(t, f, sale)

	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusRefunded,
		Source:        "gateway",
		Reason:        "buyer requested refund",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	commissions, err := f.svc.ListCommissions(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("ListCommissions: %v", err)
	}
	for _, c := range commissions {
		if c.Status != enums.CommissionStatusReversed || c.ReversedAt == nil {
			t.Fatalf("commission not reversed: %+v", c)
		}
	}

	balance, err := f.ledger.GetBalance(context.Background(), affiliate)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.PendingCents != 0 || balance.AvailableCents != 0 || balance.TotalCents != 0 {
		t.Fatalf("refund should zero the balance: %+v", balance)
	}

	var debts []models.AnticipationDebt
	if err := f.db.Where("sale_id = ?", sale.ID).Find(&debts).Error; err != nil {
		t.Fatalf("load debts: %v", err)
	}
	if len(debts) != 0 {
		t.Fatalf("pending commissions must not create debt: %+v", debts)
	}

	last := f.outbox.events[len(f.outbox.events)-1]
	if last.EventType != enums.EventSaleRefunded {
		t.Fatalf("unexpected final event %s", last.EventType)
	}
}

func TestChargebackAfterAnticipationCreatesDebt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sale, _ := seedSale(t, f, enums.SaleStatusPending)
	approve(t, f, sale)

	// Simulate the producer commission having been anticipated already.
	now := time.Now()
	res := f.db.Model(&models.SaleCommission{}).
		Where("sale_id = ? AND role = ?", sale.ID, enums.CommissionRoleProducer).
		Updates(map[string]any{
			"status":         enums.CommissionStatusAnticipated,
			"anticipated_at": now,
		})
	if res.Error != nil || res.RowsAffected != 1 {
		t.Fatalf("mark anticipated: %v (%d rows)", res.Error, res.RowsAffected)
	}

	err := f.svc.ApplyPaymentEvent(context.Background(), PaymentEvent{
		TransactionID: sale.TransactionID,
		Status:        enums.SaleStatusChargeback,
		Source:        "gateway",
	})
	if err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	var debts []models.AnticipationDebt
	if err := f.db.Where("sale_id = ?", sale.ID).Find(&debts).Error; err != nil {
		t.Fatalf("load debts: %v", err)
	}
	if len(debts) != 1 || debts[0].RemainingCents != 7000 {
		t.Fatalf("expected one 7000c debt, got %+v", debts)
	}

	balance, err := f.ledger.GetBalance(context.Background(), sale.SellerUserID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.AvailableCents != -7000 {
		t.Fatalf("anticipated funds were gone, deficit must show: %+v", balance)
	}
}
