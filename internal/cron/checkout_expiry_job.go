package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/centpay/centpay-backend/internal/sales"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/logger"
)

const expiryBatchSize = 500

type expiredSaleLister interface {
	ListExpiredPendingSales(ctx context.Context, now time.Time, limit int) ([]models.Sale, error)
}

type paymentEventApplier interface {
	ApplyPaymentEvent(ctx context.Context, event sales.PaymentEvent) error
}

type CheckoutExpiryJobParams struct {
	Logger    *logger.Logger
	Repo      expiredSaleLister
	Sales     paymentEventApplier
	BatchSize int
}

// NewCheckoutExpiryJob builds the job that expires pending pix and boleto
// sales whose payment deadline has passed.
func NewCheckoutExpiryJob(params CheckoutExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = expiryBatchSize
	}
	return &checkoutExpiryJob{
		logg:      params.Logger,
		repo:      params.Repo,
		sales:     params.Sales,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type checkoutExpiryJob struct {
	logg      *logger.Logger
	repo      expiredSaleLister
	sales     paymentEventApplier
	batchSize int
	now       func() time.Time
}

func (j *checkoutExpiryJob) Name() string { return "checkout-expiry" }

func (j *checkoutExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.repo.ListExpiredPendingSales(ctx, now, j.batchSize)
	if err != nil {
		return fmt.Errorf("list expired sales: %w", err)
	}

	applied := 0
	for _, sale := range expired {
		err := j.sales.ApplyPaymentEvent(ctx, sales.PaymentEvent{
			TransactionID: sale.TransactionID,
			Status:        enums.SaleStatusExpired,
			AmountCents:   sale.AmountCents,
			Source:        "expiry-worker",
			Reason:        "payment deadline passed",
			OccurredAt:    now,
		})
		if err != nil {
			// A webhook won the race and moved the sale first.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				continue
			}
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"sale_id":        sale.ID,
				"transaction_id": sale.TransactionID,
			})
			j.logg.Error(logCtx, "expire sale", err)
			continue
		}
		applied++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(expired),
		"expired":    applied,
	})
	j.logg.Info(logCtx, "checkout expiry sweep complete")
	return nil
}
