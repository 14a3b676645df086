package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
)

// Service is the only write path into the balance ledger. Every movement is
// recorded inside the caller's transaction under the per-user account lock,
// and balances are always derived by folding movements.
type Service interface {
	RecordMovement(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.BalanceMovement, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (Balance, error)
	BalanceForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (Balance, error)
	ListMovements(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceMovement, error)
}

// MovementInput captures the immutable data a ledger movement requires.
type MovementInput struct {
	UserID        uuid.UUID
	AmountCents   int64
	Bucket        enums.BalanceBucket
	MovementType  enums.MovementType
	ReferenceType string
	ReferenceID   uuid.UUID
	Description   string
}

// Balance is the fold over a user's movements, partitioned by bucket.
// Anticipated reports the lifetime total credited early via anticipation.
type Balance struct {
	AvailableCents   int64 `json:"available_cents"`
	PendingCents     int64 `json:"pending_cents"`
	AnticipatedCents int64 `json:"anticipated_cents"`
	TotalCents       int64 `json:"total_cents"`
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordMovement(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.BalanceMovement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger movements require a transaction")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.AmountCents == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}
	if !input.Bucket.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid balance bucket %q", input.Bucket))
	}
	if !input.MovementType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid movement type %q", input.MovementType))
	}
	if input.ReferenceID == uuid.Nil || input.ReferenceType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement reference is required")
	}

	repo := s.repo.WithTx(tx)
	if err := repo.EnsureAccount(ctx, input.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure ledger account")
	}
	if err := repo.LockAccount(ctx, input.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ledger account")
	}

	before, err := totalBalance(ctx, repo, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fold balance")
	}

	movement := &models.BalanceMovement{
		ID:                 uuid.New(),
		UserID:             input.UserID,
		AmountCents:        input.AmountCents,
		Bucket:             input.Bucket,
		MovementType:       input.MovementType,
		BalanceBeforeCents: before,
		BalanceAfterCents:  before + input.AmountCents,
		ReferenceType:      input.ReferenceType,
		ReferenceID:        input.ReferenceID,
		Description:        input.Description,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record movement")
	}
	return movement, nil
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (Balance, error) {
	if userID == uuid.Nil {
		return Balance{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	available, err := s.repo.SumBucket(ctx, userID, enums.BalanceBucketAvailable)
	if err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fold available balance")
	}
	pending, err := s.repo.SumBucket(ctx, userID, enums.BalanceBucketPending)
	if err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fold pending balance")
	}
	anticipated, err := s.repo.SumMovementType(ctx, userID, enums.MovementTypeAnticipationCredit)
	if err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fold anticipated total")
	}
	return Balance{
		AvailableCents:   available,
		PendingCents:     pending,
		AnticipatedCents: anticipated,
		TotalCents:       available + pending,
	}, nil
}

// BalanceForUpdate folds the balance inside the caller's transaction while
// holding the per-user account lock, so a check-then-debit sequence cannot
// race a concurrent writer.
func (s *service) BalanceForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (Balance, error) {
	if tx == nil {
		return Balance{}, pkgerrors.New(pkgerrors.CodeInternal, "locked balance reads require a transaction")
	}
	if userID == uuid.Nil {
		return Balance{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	repo := s.repo.WithTx(tx)
	if err := repo.EnsureAccount(ctx, userID); err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure ledger account")
	}
	if err := repo.LockAccount(ctx, userID); err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock ledger account")
	}
	available, err := repo.SumBucket(ctx, userID, enums.BalanceBucketAvailable)
	if err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fold available balance")
	}
	pending, err := repo.SumBucket(ctx, userID, enums.BalanceBucketPending)
	if err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fold pending balance")
	}
	anticipated, err := repo.SumMovementType(ctx, userID, enums.MovementTypeAnticipationCredit)
	if err != nil {
		return Balance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fold anticipated total")
	}
	return Balance{
		AvailableCents:   available,
		PendingCents:     pending,
		AnticipatedCents: anticipated,
		TotalCents:       available + pending,
	}, nil
}

func (s *service) ListMovements(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceMovement, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func totalBalance(ctx context.Context, repo Repository, userID uuid.UUID) (int64, error) {
	available, err := repo.SumBucket(ctx, userID, enums.BalanceBucketAvailable)
	if err != nil {
		return 0, err
	}
	pending, err := repo.SumBucket(ctx, userID, enums.BalanceBucketPending)
	if err != nil {
		return 0, err
	}
	return available + pending, nil
}
