package anticipation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/centpay/centpay-backend/pkg/db/models"
	"github.com/centpay/centpay-backend/pkg/enums"
)

// Repository manages persistence for anticipation batches and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, anticipation *models.Anticipation) error
	CreateItems(ctx context.Context, items []*models.AnticipationItem) error
	Get(ctx context.Context, id uuid.UUID) (*models.Anticipation, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Anticipation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Anticipation, error)
	ListItems(ctx context.Context, anticipationID uuid.UUID) ([]models.AnticipationItem, error)
	DeleteItems(ctx context.Context, anticipationID uuid.UUID) error

	ListEligibleCommissions(ctx context.Context, userID uuid.UUID, commissionIDs []uuid.UUID) ([]models.SaleCommission, error)
	FlipCommissionAnticipated(ctx context.Context, commissionID uuid.UUID, at time.Time) (bool, error)

	ClaimProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an anticipation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, anticipation *models.Anticipation) error {
	return r.db.WithContext(ctx).Create(anticipation).Error
}

func (r *repository) CreateItems(ctx context.Context, items []*models.AnticipationItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(items).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Anticipation, error) {
	var anticipation models.Anticipation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&anticipation).Error; err != nil {
		return nil, err
	}
	return &anticipation, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Anticipation, error) {
	var anticipation models.Anticipation
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&anticipation).Error; err != nil {
		return nil, err
	}
	return &anticipation, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Anticipation, error) {
	var anticipations []models.Anticipation
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&anticipations).Error; err != nil {
		return nil, err
	}
	return anticipations, nil
}

func (r *repository) ListItems(ctx context.Context, anticipationID uuid.UUID) ([]models.AnticipationItem, error) {
	var items []models.AnticipationItem
	err := r.db.WithContext(ctx).
		Where("anticipation_id = ?", anticipationID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItems releases a batch's commission reservations. Commission IDs are
// unique across items, so a failed batch must shed its rows before the same
// commissions can be requested again.
func (r *repository) DeleteItems(ctx context.Context, anticipationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("anticipation_id = ?", anticipationID).
		Delete(&models.AnticipationItem{}).Error
}

// ListEligibleCommissions returns held commissions that can still be pulled
// forward: pending status and not reserved by a live batch. Items belonging
// to failed or cancelled batches do not count as reservations.
func (r *repository) ListEligibleCommissions(ctx context.Context, userID uuid.UUID, commissionIDs []uuid.UUID) ([]models.SaleCommission, error) {
	reserved := r.db.Model(&models.AnticipationItem{}).
		Select("anticipation_items.commission_id").
		Joins("JOIN anticipations ON anticipations.id = anticipation_items.anticipation_id").
		Where("anticipations.status NOT IN ?", []enums.AnticipationStatus{
			enums.AnticipationStatusFailed,
			enums.AnticipationStatusCancelled,
		})
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.CommissionStatusPending).
		Where("id NOT IN (?)", reserved).
		Order("release_date ASC")
	if len(commissionIDs) > 0 {
		q = q.Where("id IN ?", commissionIDs)
	}
	var commissions []models.SaleCommission
	if err := q.Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

// FlipCommissionAnticipated only succeeds while the commission is still
// pending, so a reversal racing the batch makes the flip fail loudly.
func (r *repository) FlipCommissionAnticipated(ctx context.Context, commissionID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SaleCommission{}).
		Where("id = ? AND status = ?", commissionID, enums.CommissionStatusPending).
		Updates(map[string]any{
			"status":         enums.CommissionStatusAnticipated,
			"anticipated_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ClaimProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Anticipation{}).
		Where("id = ? AND status = ?", id, enums.AnticipationStatusPending).
		Update("status", enums.AnticipationStatusProcessing)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Anticipation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.AnticipationStatusCompleted,
			"completed_at": at,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Anticipation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.AnticipationStatusFailed,
			"failure_reason": reason,
		}).Error
}
