package withdrawal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
)

// Repository manages withdrawal persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)

	MarkCompleted(ctx context.Context, id uuid.UUID, externalReference string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a withdrawal repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&withdrawal).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&withdrawal).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&withdrawals).Error; err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// MarkCompleted closes an open withdrawal. The status guard makes completion
// and failure mutually exclusive under concurrent rail callbacks.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, externalReference string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status IN ?", id, openStatuses()).
		Updates(map[string]any{
			"status":             enums.WithdrawalStatusCompleted,
			"external_reference": externalReference,
			"completed_at":       at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status IN ?", id, openStatuses()).
		Updates(map[string]any{
			"status":         enums.WithdrawalStatusFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected == 1, res.Error
}

func openStatuses() []enums.WithdrawalStatus {
	return []enums.WithdrawalStatus{
		enums.WithdrawalStatusPending,
		enums.WithdrawalStatusProcessing,
	}
}
