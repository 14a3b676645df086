package anticipation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/internal/ledger"
	"github.com/centpay/centpay-backend/pkg/config"
	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
	"github.com/centpay/centpay-backend/pkg/outbox"
	"github.com/centpay/centpay-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerRecorder interface {
	RecordMovement(ctx context.Context, tx *gorm.DB, input ledger.MovementInput) (*models.BalanceMovement, error)
}

// RequestInput asks for an early settlement of held commissions. An empty
// CommissionIDs slice means everything currently eligible.
type RequestInput struct {
	UserID         uuid.UUID
	CommissionIDs  []uuid.UUID
	IdempotencyKey string
}

// Service prices and settles anticipation batches. The fee for each
// commission is frozen at request time; processing later flips the whole
// batch or none of it.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Anticipation, error)
	Process(ctx context.Context, anticipationID uuid.UUID) (*models.Anticipation, error)
	Get(ctx context.Context, userID, anticipationID uuid.UUID) (*models.Anticipation, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Anticipation, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	ledger    ledgerRecorder
	dailyRate decimal.Decimal
	minCents  int64
}

// NewService builds an anticipation service from the configured fee schedule.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledgerSvc ledgerRecorder, cfg config.AnticipationConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("anticipation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger recorder required")
	}
	dailyRate, err := decimal.NewFromString(cfg.DailyRatePercent)
	if err != nil {
		return nil, fmt.Errorf("anticipation daily rate misconfigured: %w", err)
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		ledger:    ledgerSvc,
		dailyRate: dailyRate,
		minCents:  cfg.MinAmountCents,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.Anticipation, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}

	if existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		if existing.UserID != input.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key belongs to another user")
		}
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up idempotency key")
	}

	now := time.Now()
	var anticipation *models.Anticipation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		commissions, err := repo.ListEligibleCommissions(ctx, input.UserID, input.CommissionIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list eligible commissions")
		}
		if len(input.CommissionIDs) > 0 && len(commissions) != len(input.CommissionIDs) {
			return pkgerrors.New(pkgerrors.CodeValidation, "one or more commissions are not eligible for anticipation")
		}
		if len(commissions) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no commissions eligible for anticipation")
		}

		batchID := uuid.New()
		items := make([]*models.AnticipationItem, 0, len(commissions))
		var totalOriginal, totalFee int64
		for _, commission := range commissions {
			fee := s.feeFor(commission.NetAmountCents, commission.ReleaseDate, now)
			items = append(items, &models.AnticipationItem{
				ID:             uuid.New(),
				AnticipationID: batchID,
				CommissionID:   commission.ID,
				OriginalCents:  commission.NetAmountCents,
				FeeCents:       fee,
				NetCents:       commission.NetAmountCents - fee,
			})
			totalOriginal += commission.NetAmountCents
			totalFee += fee
		}
		if totalOriginal < s.minCents {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("anticipation total %d below minimum %d", totalOriginal, s.minCents))
		}

		anticipation = &models.Anticipation{
			ID:                    batchID,
			UserID:                input.UserID,
			Status:                enums.AnticipationStatusPending,
			FeePercentage:         s.dailyRate,
			TotalOriginalCents:    totalOriginal,
			TotalAnticipatedCents: totalOriginal - totalFee,
			FeeCents:              totalFee,
			IdempotencyKey:        input.IdempotencyKey,
		}
		if err := repo.Create(ctx, anticipation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create anticipation")
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reserve commissions for anticipation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return anticipation, nil
}

// errBatchConflict aborts processing when a commission left the pending state
// between request and settlement.
var errBatchConflict = errors.New("anticipation batch conflict")

func (s *service) Process(ctx context.Context, anticipationID uuid.UUID) (*models.Anticipation, error) {
	if anticipationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "anticipation id is required")
	}
	anticipation, err := s.repo.Get(ctx, anticipationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "anticipation not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load anticipation")
	}

	now := time.Now()
	var conflictReason string
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		claimed, err := repo.ClaimProcessing(ctx, anticipation.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim anticipation")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("anticipation is %s, not pending", anticipation.Status))
		}

		items, err := repo.ListItems(ctx, anticipation.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list anticipation items")
		}
		for _, item := range items {
			flipped, err := repo.FlipCommissionAnticipated(ctx, item.CommissionID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flip commission")
			}
			if !flipped {
				conflictReason = fmt.Sprintf("commission %s no longer pending", item.CommissionID)
				return errBatchConflict
			}
		}

		_, err = s.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
			UserID:        anticipation.UserID,
			AmountCents:   -anticipation.TotalOriginalCents,
			Bucket:        enums.BalanceBucketPending,
			MovementType:  enums.MovementTypeAnticipationDebit,
			ReferenceType: "anticipation",
			ReferenceID:   anticipation.ID,
			Description:   "held commissions pulled forward",
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.RecordMovement(ctx, tx, ledger.MovementInput{
			UserID:        anticipation.UserID,
			AmountCents:   anticipation.TotalAnticipatedCents,
			Bucket:        enums.BalanceBucketAvailable,
			MovementType:  enums.MovementTypeAnticipationCredit,
			ReferenceType: "anticipation",
			ReferenceID:   anticipation.ID,
			Description:   "anticipated net credited",
		})
		if err != nil {
			return err
		}

		if err := repo.MarkCompleted(ctx, anticipation.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete anticipation")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAnticipationCompleted,
			AggregateType: enums.AggregateAnticipation,
			AggregateID:   anticipation.ID,
			Data: payloads.AnticipationCompletedEvent{
				AnticipationID:  anticipation.ID,
				UserID:          anticipation.UserID,
				GrossCents:      anticipation.TotalOriginalCents,
				FeeCents:        anticipation.FeeCents,
				NetCents:        anticipation.TotalAnticipatedCents,
				CommissionCount: len(items),
				CompletedAt:     now,
			},
			Version:    1,
			OccurredAt: now,
		})
	})
	if errors.Is(txErr, errBatchConflict) {
		failErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.MarkFailed(ctx, anticipation.ID, conflictReason); err != nil {
				return err
			}
			return repo.DeleteItems(ctx, anticipation.ID)
		})
		if failErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, failErr, "fail anticipation")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, conflictReason)
	}
	if txErr != nil {
		return nil, txErr
	}
	return s.repo.Get(ctx, anticipation.ID)
}

func (s *service) Get(ctx context.Context, userID, anticipationID uuid.UUID) (*models.Anticipation, error) {
	anticipation, err := s.repo.Get(ctx, anticipationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "anticipation not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load anticipation")
	}
	if anticipation.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "anticipation not found")
	}
	return anticipation, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Anticipation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// feeFor prices one commission: daily rate times the whole days left until
// its release date, rounded half up on the cent.
func (s *service) feeFor(amountCents int64, releaseDate, now time.Time) int64 {
	days := int64(0)
	if releaseDate.After(now) {
		days = int64(releaseDate.Sub(now).Hours()/24) + 1
	}
	fee := decimal.NewFromInt(amountCents).
		Mul(s.dailyRate).
		Mul(decimal.NewFromInt(days)).
		Div(decimal.NewFromInt(100))
	return fee.Round(0).IntPart()
}
