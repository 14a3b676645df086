package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/internal/sales"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	"github.com/centpay/centpay-backend/pkg/logger"
)

const releaseBatchSize = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ReleaseFundsJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Sales     sales.Repository
	Ledger    ledger.Service
	BatchSize int
}

// NewReleaseFundsJob builds the job that moves matured commissions from the
// pending bucket to available once their release date passes.
func NewReleaseFundsJob(params ReleaseFundsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = releaseBatchSize
	}
	return &releaseFundsJob{
		logg:      params.Logger,
		db:        params.DB,
		sales:     params.Sales,
		ledger:    params.Ledger,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type releaseFundsJob struct {
	logg      *logger.Logger
	db        txRunner
	sales     sales.Repository
	ledger    ledger.Service
	batchSize int
	now       func() time.Time
}

func (j *releaseFundsJob) Name() string { return "release-funds" }

func (j *releaseFundsJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	commissions, err := j.sales.ListReleasableCommissions(ctx, now, j.batchSize)
	if err != nil {
		return fmt.Errorf("list releasable commissions: %w", err)
	}

	released := 0
	users := map[uuid.UUID]struct{}{}
	for _, commission := range commissions {
		if err := j.releaseOne(ctx, commission, now); err != nil {
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"commission_id": commission.ID,
				"sale_id":       commission.SaleID,
			})
			j.logg.Error(logCtx, "release commission", err)
			continue
		}
		released++
		users[commission.UserID] = struct{}{}
	}

	settled := 0
	for userID := range users {
		n, err := j.settleDebts(ctx, userID, now)
		if err != nil {
			logCtx := j.logg.WithField(ctx, "user_id", userID)
			j.logg.Error(logCtx, "settle anticipation debts", err)
			continue
		}
		settled += n
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates":    len(commissions),
		"released":      released,
		"debts_settled": settled,
	})
	j.logg.Info(logCtx, "funds release sweep complete")
	return nil
}

// releaseOne settles a single commission in its own transaction so one bad
// row does not hold up the rest of the batch.
func (j *releaseFundsJob) releaseOne(ctx context.Context, commission models.SaleCommission, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.sales.WithTx(tx)
		flipped, err := repo.ReleaseCommission(ctx, commission.ID, now)
		if err != nil {
			return err
		}
		// Reversed or anticipated since the listing; nothing to move.
		if !flipped {
			return nil
		}

		_, err = j.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
			UserID:        commission.UserID,
			AmountCents:   -commission.CommissionCents,
			Bucket:        enums.BalanceBucketPending,
			MovementType:  enums.MovementTypeReleaseDebit,
			ReferenceType: "sale_commission",
			ReferenceID:   commission.ID,
			Description:   "commission matured",
		})
		if err != nil {
			return err
		}
		_, err = j.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
			UserID:        commission.UserID,
			AmountCents:   commission.CommissionCents,
			Bucket:        enums.BalanceBucketAvailable,
			MovementType:  enums.MovementTypeReleaseCredit,
			ReferenceType: "sale_commission",
			ReferenceID:   commission.ID,
			Description:   "commission matured",
		})
		if err != nil {
			return err
		}

		if err := repo.MarkSplitReleased(ctx, commission.ID, now); err != nil {
			return err
		}
		return j.markSaleReleased(ctx, repo, commission.SaleID, now)
	})
}

// markSaleReleased stamps the financial transaction once no commission on the
// sale is still held.
func (j *releaseFundsJob) markSaleReleased(ctx context.Context, repo sales.Repository, saleID uuid.UUID, now time.Time) error {
	commissions, err := repo.ListCommissionsBySale(ctx, saleID)
	if err != nil {
		return err
	}
	for _, c := range commissions {
		if c.Status == enums.CommissionStatusPending {
			return nil
		}
	}
	ft, err := repo.GetTransactionBySale(ctx, saleID)
	if err != nil {
		return err
	}
	if ft.IsReleased {
		return nil
	}
	ft.IsReleased = true
	ft.ReleasedAt = &now
	return repo.SaveTransaction(ctx, ft)
}

// settleDebts closes open anticipation debts once fresh releases have pulled
// the user's available balance out of the red.
func (j *releaseFundsJob) settleDebts(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	settled := 0
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.sales.WithTx(tx)
		debts, err := repo.ListOpenDebtsByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(debts) == 0 {
			return nil
		}
		balance, err := j.ledger.BalanceForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if balance.AvailableCents < 0 {
			return nil
		}
		for _, debt := range debts {
			if err := repo.SettleDebt(ctx, debt.ID, now); err != nil {
				return err
			}
			settled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return settled, nil
}
