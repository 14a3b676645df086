package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
)

// Repository manages persistence for ledger accounts and movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureAccount(ctx context.Context, userID uuid.UUID) error
	LockAccount(ctx context.Context, userID uuid.UUID) error
	CreateMovement(ctx context.Context, movement *models.BalanceMovement) error
	SumBucket(ctx context.Context, userID uuid.UUID, bucket enums.BalanceBucket) (int64, error)
	SumMovementType(ctx context.Context, userID uuid.UUID, movementType enums.MovementType) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) EnsureAccount(ctx context.Context, userID uuid.UUID) error {
	account := models.LedgerAccount{UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
}

// LockAccount takes the per-user row lock that serializes movement writes.
// SQLite serializes writers on its own, so the clause is postgres-only.
func (r *repository) LockAccount(ctx context.Context, userID uuid.UUID) error {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account models.LedgerAccount
	return q.Where("user_id = ?", userID).First(&account).Error
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.BalanceMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) SumBucket(ctx context.Context, userID uuid.UUID, bucket enums.BalanceBucket) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.BalanceMovement{}).
		Select("SUM(amount_cents)").
		Where("user_id = ? AND bucket = ?", userID, bucket).
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

func (r *repository) SumMovementType(ctx context.Context, userID uuid.UUID, movementType enums.MovementType) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.BalanceMovement{}).
		Select("SUM(amount_cents)").
		Where("user_id = ? AND movement_type = ?", userID, movementType).
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceMovement, error) {
	var movements []models.BalanceMovement
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
