package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/centpay/centpay-backend/internal/sales"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

type fakeExpiredSaleLister struct {
	sales []models.Sale
	err   error
}

func (f *fakeExpiredSaleLister) ListExpiredPendingSales(context.Context, time.Time, int) ([]models.Sale, error) {
	return f.sales, f.err
}

type fakePaymentEventApplier struct {
	applied []sales.PaymentEvent
	errs    map[string]error
}

func (f *fakePaymentEventApplier) ApplyPaymentEvent(_ context.Context, event sales.PaymentEvent) error {
	if err, ok := f.errs[event.TransactionID]; ok {
		return err
	}
	f.applied = append(f.applied, event)
	return nil
}

func newCheckoutExpiryJob(t *testing.T, repo *fakeExpiredSaleLister, applier *fakePaymentEventApplier) *checkoutExpiryJob {
	t.Helper()
	jobIface, err := NewCheckoutExpiryJob(CheckoutExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Repo:   repo,
		Sales:  applier,
	})
	if err != nil {
		t.Fatalf("NewCheckoutExpiryJob: %v", err)
	}
	return jobIface.(*checkoutExpiryJob)
}

func expiredSale(transactionID string) models.Sale {
	return models.Sale{
		ID:            uuid.New(),
		AmountCents:   10000,
		Status:        enums.SaleStatusPending,
		TransactionID: transactionID,
	}
}

func TestCheckoutExpiryJobExpiresPendingSales(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &fakeExpiredSaleLister{sales: []models.Sale{
		expiredSale("txn_a"),
		expiredSale("txn_b"),
	}}
	applier := &fakePaymentEventApplier{}
	job := newCheckoutExpiryJob(t, repo, applier)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(applier.applied) != 2 {
		t.Fatalf("expected 2 events, got %d", len(applier.applied))
	}
	event := applier.applied[0]
	if event.Status != enums.SaleStatusExpired || event.Source != "expiry-worker" || !event.OccurredAt.Equal(now) {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestCheckoutExpiryJobToleratesRaceWithWebhook(t *testing.T) {
	repo := &fakeExpiredSaleLister{sales: []models.Sale{
		expiredSale("txn_raced"),
		expiredSale("txn_ok"),
	}}
	applier := &fakePaymentEventApplier{errs: map[string]error{
		"txn_raced": pkgerrors.New(pkgerrors.CodeStateConflict, "cannot transition"),
	}}
	job := newCheckoutExpiryJob(t, repo, applier)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(applier.applied) != 1 || applier.applied[0].TransactionID != "txn_ok" {
		t.Fatalf("unexpected events: %+v", applier.applied)
	}
}

func TestCheckoutExpiryJobPropagatesListError(t *testing.T) {
	repo := &fakeExpiredSaleLister{err: errors.New("boom")}
	job := newCheckoutExpiryJob(t, repo, &fakePaymentEventApplier{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
